package device

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// GroupWriter issues group write telegrams on the bus; the knx service
// implements it.
type GroupWriter interface {
	GroupWrite(destination model.GroupAddress, dpt model.DptName, value string) error
}

const (
	DefaultMinKelvin = 2700
	DefaultMaxKelvin = 6000
)

// feature pairs a writable group address with its optional state address.
type feature struct {
	cmd   *RemoteValue
	state *RemoteValue
}

func newFeature(cmd, state model.GroupAddress, dpt model.DptName) feature {
	return feature{
		cmd:   NewRemoteValue(cmd, dpt),
		state: NewRemoteValue(state, dpt),
	}
}

func (f feature) supported() bool {
	return f.cmd.Monitored() || f.state.Monitored()
}

// current prefers the dedicated state address over the command echo.
func (f feature) current() (string, bool) {
	if v, ok := f.state.Raw(); ok {
		return v, true
	}
	return f.cmd.Raw()
}

// Light manages a dimmable, optionally colored light. Commands are sent
// as group writes; state flows back in via telegrams like any other
// tracked value.
type Light struct {
	name   string
	writer GroupWriter

	switching        feature
	brightness       feature
	color            feature
	rgbw             feature
	tunableWhite     feature
	colorTemperature feature

	minKelvin int
	maxKelvin int
	syncState bool
}

func NewLight(cfg *config.LightConfig, writer GroupWriter) *Light {
	minKelvin, maxKelvin := cfg.MinKelvin, cfg.MaxKelvin
	if minKelvin == 0 {
		minKelvin = DefaultMinKelvin
	}
	if maxKelvin == 0 {
		maxKelvin = DefaultMaxKelvin
	}
	return &Light{
		name:             cfg.Name,
		writer:           writer,
		switching:        newFeature(cfg.GroupAddressSwitch, cfg.GroupAddressSwitchState, model.DptSwitch),
		brightness:       newFeature(cfg.GroupAddressBrightness, cfg.GroupAddressBrightnessState, model.DptScaling),
		color:            newFeature(cfg.GroupAddressColor, cfg.GroupAddressColorState, model.DptColorRGB),
		rgbw:             newFeature(cfg.GroupAddressRgbw, cfg.GroupAddressRgbwState, model.DptColorRGBW),
		tunableWhite:     newFeature(cfg.GroupAddressTunableWhite, cfg.GroupAddressTunableWhiteState, model.DptScaling),
		colorTemperature: newFeature(cfg.GroupAddressColorTemperature, cfg.GroupAddressColorTemperatureState, model.Dpt2ByteUint),
		minKelvin:        minKelvin,
		maxKelvin:        maxKelvin,
		syncState:        cfg.SyncState,
	}
}

func (l *Light) Name() string {
	return l.name
}

func (l *Light) ExposeSensors() bool {
	return false
}

func (l *Light) Registration() model.Device {
	return model.Device{
		ID:    "light_" + l.name,
		Name:  l.name,
		Model: "light",
	}
}

func (l *Light) SupportsBrightness() bool {
	return l.brightness.supported()
}

func (l *Light) SupportsColor() bool {
	return l.color.supported()
}

func (l *Light) SupportsRgbw() bool {
	return l.rgbw.supported()
}

func (l *Light) SupportsTunableWhite() bool {
	return l.tunableWhite.supported()
}

func (l *Light) SupportsColorTemperature() bool {
	return l.colorTemperature.supported()
}

// IsOn reports the tracked switch state.
func (l *Light) IsOn() (bool, bool) {
	raw, ok := l.switching.current()
	if !ok {
		return false, false
	}
	return raw == "1" || raw == "true" || raw == "on", true
}

// TurnOn switches the light on via the bus.
func (l *Light) TurnOn() error {
	return l.setSwitch(true)
}

// TurnOff switches the light off via the bus.
func (l *Light) TurnOff() error {
	return l.setSwitch(false)
}

func (l *Light) setSwitch(on bool) error {
	if !l.switching.cmd.Monitored() {
		return buserr.NewDeviceIllegalValue("light does not support switching", l.name)
	}
	value := "0"
	if on {
		value = "1"
	}
	if err := l.writer.GroupWrite(l.switching.cmd.Address(), model.DptSwitch, value); err != nil {
		return err
	}
	l.switching.cmd.Update(value)
	return nil
}

// SetBrightness dims the light, value range 0-255.
func (l *Light) SetBrightness(brightness int) error {
	if !l.brightness.cmd.Monitored() {
		return buserr.NewDeviceIllegalValue("light does not support brightness", l.name)
	}
	if brightness < 0 || brightness > 255 {
		return buserr.NewDeviceIllegalValue("brightness out of range 0-255", brightness)
	}
	value := strconv.Itoa(brightness)
	if err := l.writer.GroupWrite(l.brightness.cmd.Address(), model.DptScaling, value); err != nil {
		return err
	}
	l.brightness.cmd.Update(value)
	return nil
}

// SetColorTemperature sets the absolute color temperature in kelvin,
// bounded by the configured min/max.
func (l *Light) SetColorTemperature(kelvin int) error {
	if !l.colorTemperature.cmd.Monitored() {
		return buserr.NewDeviceIllegalValue("light does not support color temperature", l.name)
	}
	if kelvin < l.minKelvin || kelvin > l.maxKelvin {
		return buserr.NewDeviceIllegalValue(
			fmt.Sprintf("color temperature out of range %d-%d", l.minKelvin, l.maxKelvin), kelvin)
	}
	value := strconv.Itoa(kelvin)
	if err := l.writer.GroupWrite(l.colorTemperature.cmd.Address(), model.Dpt2ByteUint, value); err != nil {
		return err
	}
	l.colorTemperature.cmd.Update(value)
	return nil
}

func (l *Light) features() map[string]feature {
	return map[string]feature{
		"state":             l.switching,
		"brightness":        l.brightness,
		"color":             l.color,
		"rgbw":              l.rgbw,
		"tunable_white":     l.tunableWhite,
		"color_temperature": l.colorTemperature,
	}
}

func (l *Light) Monitors(ga model.GroupAddress) bool {
	for _, f := range l.features() {
		for _, rv := range []*RemoteValue{f.cmd, f.state} {
			if rv.Monitored() && rv.Address() == ga {
				return true
			}
		}
	}
	return false
}

func (l *Light) HandleTelegram(ev model.TelegramEvent) []model.DeviceStatus {
	statuses := []model.DeviceStatus{}
	for slug, f := range l.features() {
		for _, rv := range []*RemoteValue{f.cmd, f.state} {
			if !rv.Monitored() || rv.Address() != ev.Destination {
				continue
			}
			if !rv.Update(ev.Value) {
				continue
			}
			value := ev.Value
			statuses = append(statuses, model.DeviceStatus{
				Name:  l.name + " " + slug,
				Slug:  slug,
				Value: &value,
				Unit:  model.UnitFor(rv.Dpt()),
				Dirty: true,
			})
		}
	}
	return statuses
}

func (l *Light) SyncAddresses() []model.GroupAddress {
	if !l.syncState {
		return nil
	}
	addresses := []model.GroupAddress{}
	for _, f := range l.features() {
		if f.state.Monitored() {
			addresses = append(addresses, f.state.Address())
		}
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return addresses
}
