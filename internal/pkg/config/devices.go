package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// WeatherConfig is the declarative configuration of one weather station.
// An address field left unset means the measurement is not monitored.
type WeatherConfig struct {
	Name                        string             `yaml:"name"`
	GroupAddressTemperature     model.GroupAddress `yaml:"group_address_temperature,omitempty"`
	GroupAddressBrightnessSouth model.GroupAddress `yaml:"group_address_brightness_south,omitempty"`
	GroupAddressBrightnessWest  model.GroupAddress `yaml:"group_address_brightness_west,omitempty"`
	GroupAddressBrightnessEast  model.GroupAddress `yaml:"group_address_brightness_east,omitempty"`
	GroupAddressWindSpeed       model.GroupAddress `yaml:"group_address_wind_speed,omitempty"`
	GroupAddressRainAlarm       model.GroupAddress `yaml:"group_address_rain_alarm,omitempty"`
	GroupAddressWindAlarm       model.GroupAddress `yaml:"group_address_wind_alarm,omitempty"`
	GroupAddressFrostAlarm      model.GroupAddress `yaml:"group_address_frost_alarm,omitempty"`
	GroupAddressDayNight        model.GroupAddress `yaml:"group_address_day_night,omitempty"`
	GroupAddressAirPressure     model.GroupAddress `yaml:"group_address_air_pressure,omitempty"`
	GroupAddressHumidity        model.GroupAddress `yaml:"group_address_humidity,omitempty"`
	ExposeSensors               bool               `yaml:"expose_sensors,omitempty"`
	SyncState                   bool               `yaml:"sync_state,omitempty"`
}

// Addresses returns the bound addresses keyed by measurement. Unset
// fields are absent from the map.
func (wc *WeatherConfig) Addresses() map[model.Measurement]model.GroupAddress {
	all := map[model.Measurement]model.GroupAddress{
		model.MeasurementTemperature:     wc.GroupAddressTemperature,
		model.MeasurementBrightnessSouth: wc.GroupAddressBrightnessSouth,
		model.MeasurementBrightnessWest:  wc.GroupAddressBrightnessWest,
		model.MeasurementBrightnessEast:  wc.GroupAddressBrightnessEast,
		model.MeasurementWindSpeed:       wc.GroupAddressWindSpeed,
		model.MeasurementRainAlarm:       wc.GroupAddressRainAlarm,
		model.MeasurementWindAlarm:       wc.GroupAddressWindAlarm,
		model.MeasurementFrostAlarm:      wc.GroupAddressFrostAlarm,
		model.MeasurementDayNight:        wc.GroupAddressDayNight,
		model.MeasurementAirPressure:     wc.GroupAddressAirPressure,
		model.MeasurementHumidity:        wc.GroupAddressHumidity,
	}
	bound := make(map[model.Measurement]model.GroupAddress, len(all))
	for measurement, ga := range all {
		if ga.IsSet() {
			bound[measurement] = ga
		}
	}
	return bound
}

func (wc *WeatherConfig) validate() error {
	if wc.Name == "" {
		return fmt.Errorf("weather station without a name")
	}
	for measurement, ga := range wc.Addresses() {
		if err := ga.Validate(); err != nil {
			return fmt.Errorf("station %s, %s: %w", wc.Name, measurement, err)
		}
	}
	return nil
}

// LightConfig is the declarative configuration of one light.
type LightConfig struct {
	Name                              string             `yaml:"name"`
	GroupAddressSwitch                model.GroupAddress `yaml:"group_address_switch,omitempty"`
	GroupAddressSwitchState           model.GroupAddress `yaml:"group_address_switch_state,omitempty"`
	GroupAddressBrightness            model.GroupAddress `yaml:"group_address_brightness,omitempty"`
	GroupAddressBrightnessState       model.GroupAddress `yaml:"group_address_brightness_state,omitempty"`
	GroupAddressColor                 model.GroupAddress `yaml:"group_address_color,omitempty"`
	GroupAddressColorState            model.GroupAddress `yaml:"group_address_color_state,omitempty"`
	GroupAddressRgbw                  model.GroupAddress `yaml:"group_address_rgbw,omitempty"`
	GroupAddressRgbwState             model.GroupAddress `yaml:"group_address_rgbw_state,omitempty"`
	GroupAddressTunableWhite          model.GroupAddress `yaml:"group_address_tunable_white,omitempty"`
	GroupAddressTunableWhiteState     model.GroupAddress `yaml:"group_address_tunable_white_state,omitempty"`
	GroupAddressColorTemperature      model.GroupAddress `yaml:"group_address_color_temperature,omitempty"`
	GroupAddressColorTemperatureState model.GroupAddress `yaml:"group_address_color_temperature_state,omitempty"`
	MinKelvin                         int                `yaml:"min_kelvin,omitempty"`
	MaxKelvin                         int                `yaml:"max_kelvin,omitempty"`
	SyncState                         bool               `yaml:"sync_state,omitempty"`
}

func (lc *LightConfig) validate() error {
	if lc.Name == "" {
		return fmt.Errorf("light without a name")
	}
	addresses := []model.GroupAddress{
		lc.GroupAddressSwitch, lc.GroupAddressSwitchState,
		lc.GroupAddressBrightness, lc.GroupAddressBrightnessState,
		lc.GroupAddressColor, lc.GroupAddressColorState,
		lc.GroupAddressRgbw, lc.GroupAddressRgbwState,
		lc.GroupAddressTunableWhite, lc.GroupAddressTunableWhiteState,
		lc.GroupAddressColorTemperature, lc.GroupAddressColorTemperatureState,
	}
	for _, ga := range addresses {
		if err := ga.Validate(); err != nil {
			return fmt.Errorf("light %s: %w", lc.Name, err)
		}
	}
	return nil
}

// DevicesConfig is the full device file (devices.yaml).
type DevicesConfig struct {
	Location Location        `yaml:"location,omitempty"`
	Stations []WeatherConfig `yaml:"stations,omitempty"`
	Lights   []LightConfig   `yaml:"lights,omitempty"`
}

// LoadDevices reads and validates the device file. Names must be unique
// across stations and lights.
func LoadDevices(path string) (*DevicesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices file: %w", err)
	}
	return ParseDevices(data)
}

func ParseDevices(data []byte) (*DevicesConfig, error) {
	cfg := &DevicesConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse devices file: %w", err)
	}

	seen := map[string]struct{}{}
	for i := range cfg.Stations {
		if err := cfg.Stations[i].validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[cfg.Stations[i].Name]; ok {
			return nil, fmt.Errorf("duplicate device name %q", cfg.Stations[i].Name)
		}
		seen[cfg.Stations[i].Name] = struct{}{}
	}
	for i := range cfg.Lights {
		if err := cfg.Lights[i].validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[cfg.Lights[i].Name]; ok {
			return nil, fmt.Errorf("duplicate device name %q", cfg.Lights[i].Name)
		}
		seen[cfg.Lights[i].Name] = struct{}{}
	}
	return cfg, nil
}

// Save writes the configuration back to its declarative form. Reloading
// the result reproduces an equivalent set of bound addresses and flags.
func (dc *DevicesConfig) Save(path string) error {
	data, err := yaml.Marshal(dc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
