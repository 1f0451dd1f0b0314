package device

import (
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// Device is implemented by every addressable device abstraction held in
// the registry.
type Device interface {
	Name() string
	// Monitors reports whether the device tracks the given group address.
	Monitors(ga model.GroupAddress) bool
	// HandleTelegram applies an incoming telegram and returns the
	// measurement updates it produced, if any.
	HandleTelegram(ev model.TelegramEvent) []model.DeviceStatus
	// SyncAddresses returns the addresses to re-request from the bus when
	// periodic state synchronization runs. Empty when sync_state is off.
	SyncAddresses() []model.GroupAddress
	// ExposeSensors reports whether measurements are published as
	// standalone sensor entities.
	ExposeSensors() bool
	// Registration identifies the device towards publishers.
	Registration() model.Device
}
