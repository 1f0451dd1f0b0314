package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// Registry holds every configured device by unique name and routes
// incoming telegrams to the devices monitoring the destination address.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
	}
}

func (r *Registry) Add(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[d.Name()]; exists {
		return fmt.Errorf("device %q already registered", d.Name())
	}
	r.devices[d.Name()] = d
	return nil
}

func (r *Registry) Get(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	return d, ok
}

func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := lo.Values(r.devices)
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name() < devices[j].Name() })
	return devices
}

func (r *Registry) Stations() []*WeatherStation {
	return filterDevices[*WeatherStation](r)
}

func (r *Registry) Lights() []*Light {
	return filterDevices[*Light](r)
}

// HandleTelegram fans one telegram out to every monitoring device and
// collects the resulting measurement updates per device.
func (r *Registry) HandleTelegram(ev model.TelegramEvent) map[model.Device][]model.DeviceStatus {
	updates := make(map[model.Device][]model.DeviceStatus)
	for _, d := range r.Devices() {
		if !d.Monitors(ev.Destination) {
			continue
		}
		if statuses := d.HandleTelegram(ev); len(statuses) > 0 {
			updates[d.Registration()] = statuses
		}
	}
	return updates
}

// SyncAddresses returns the deduplicated set of group addresses to
// re-request, across every device with state synchronization enabled.
func (r *Registry) SyncAddresses() []model.GroupAddress {
	addresses := []model.GroupAddress{}
	for _, d := range r.Devices() {
		addresses = append(addresses, d.SyncAddresses()...)
	}
	addresses = lo.Uniq(addresses)
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return addresses
}

func filterDevices[T Device](r *Registry) []T {
	return lo.FilterMap(r.Devices(), func(d Device, _ int) (T, bool) {
		t, ok := d.(T)
		return t, ok
	})
}
