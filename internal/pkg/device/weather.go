package device

import (
	"sort"
	"strings"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// brightness above this is treated as a clear sky, below as overcast.
const clearSkyLux = 25000.0

var measurementDpts = map[model.Measurement]model.DptName{
	model.MeasurementTemperature:     model.DptTemperature,
	model.MeasurementBrightnessSouth: model.DptLux,
	model.MeasurementBrightnessWest:  model.DptLux,
	model.MeasurementBrightnessEast:  model.DptLux,
	model.MeasurementWindSpeed:       model.DptWindSpeed,
	model.MeasurementRainAlarm:       model.DptAlarm,
	model.MeasurementWindAlarm:       model.DptAlarm,
	model.MeasurementFrostAlarm:      model.DptAlarm,
	model.MeasurementDayNight:        model.DptDayNight,
	model.MeasurementAirPressure:     model.DptPressure,
	model.MeasurementHumidity:        model.DptHumidity,
}

// WeatherStation tracks the measurements of one weather station. Bound
// group addresses are updated by bus telegrams; unset addresses stay
// permanently uninitialized.
type WeatherStation struct {
	name          string
	values        map[model.Measurement]*RemoteValue
	exposeSensors bool
	syncState     bool
	nightFallback func() bool
}

func NewWeatherStation(cfg *config.WeatherConfig) *WeatherStation {
	values := make(map[model.Measurement]*RemoteValue, len(measurementDpts))
	bound := cfg.Addresses()
	for measurement, dpt := range measurementDpts {
		values[measurement] = NewRemoteValue(bound[measurement], dpt)
	}
	return &WeatherStation{
		name:          cfg.Name,
		values:        values,
		exposeSensors: cfg.ExposeSensors,
		syncState:     cfg.SyncState,
	}
}

// WithNightFallback installs a day/night source used when no day_night
// group address is bound, e.g. a sunrise/sunset calculator.
func (w *WeatherStation) WithNightFallback(fallback func() bool) *WeatherStation {
	w.nightFallback = fallback
	return w
}

func (w *WeatherStation) Name() string {
	return w.name
}

func (w *WeatherStation) ExposeSensors() bool {
	return w.exposeSensors
}

func (w *WeatherStation) SyncState() bool {
	return w.syncState
}

func (w *WeatherStation) Registration() model.Device {
	return model.Device{
		ID:    "weather_" + w.name,
		Name:  w.name,
		Model: "weather-station",
	}
}

func (w *WeatherStation) Monitors(ga model.GroupAddress) bool {
	for _, rv := range w.values {
		if rv.Monitored() && rv.Address() == ga {
			return true
		}
	}
	return false
}

func (w *WeatherStation) HandleTelegram(ev model.TelegramEvent) []model.DeviceStatus {
	statuses := []model.DeviceStatus{}
	for measurement, rv := range w.values {
		if !rv.Monitored() || rv.Address() != ev.Destination {
			continue
		}
		if !rv.Update(ev.Value) {
			continue
		}
		value := ev.Value
		statuses = append(statuses, model.DeviceStatus{
			Name:  strings.ReplaceAll(measurement.String(), "_", " "),
			Slug:  measurement.String(),
			Value: &value,
			Unit:  model.UnitFor(rv.Dpt()),
			Dirty: true,
		})
	}
	return statuses
}

func (w *WeatherStation) SyncAddresses() []model.GroupAddress {
	if !w.syncState {
		return nil
	}
	return w.MonitoredAddresses()
}

// MonitoredAddresses returns every bound group address regardless of the
// sync_state flag; explicit per-station sync requests use it.
func (w *WeatherStation) MonitoredAddresses() []model.GroupAddress {
	addresses := []model.GroupAddress{}
	for _, rv := range w.values {
		if rv.Monitored() {
			addresses = append(addresses, rv.Address())
		}
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return addresses
}

// Value exposes the remote value of a measurement; callers use it for
// generic access, the typed accessors below for decoded reads.
func (w *WeatherStation) Value(m model.Measurement) *RemoteValue {
	return w.values[m]
}

// Temperature returns the current outside temperature in °C.
func (w *WeatherStation) Temperature() (float64, bool) {
	return w.float(model.MeasurementTemperature)
}

func (w *WeatherStation) BrightnessSouth() (float64, bool) {
	return w.float(model.MeasurementBrightnessSouth)
}

func (w *WeatherStation) BrightnessWest() (float64, bool) {
	return w.float(model.MeasurementBrightnessWest)
}

func (w *WeatherStation) BrightnessEast() (float64, bool) {
	return w.float(model.MeasurementBrightnessEast)
}

// MaxBrightness returns the highest of the directional brightness
// readings that have been received.
func (w *WeatherStation) MaxBrightness() (float64, bool) {
	max, ok := 0.0, false
	for _, m := range []model.Measurement{
		model.MeasurementBrightnessSouth,
		model.MeasurementBrightnessWest,
		model.MeasurementBrightnessEast,
	} {
		if v, initialized := w.float(m); initialized && (!ok || v > max) {
			max, ok = v, true
		}
	}
	return max, ok
}

func (w *WeatherStation) WindSpeed() (float64, bool) {
	return w.float(model.MeasurementWindSpeed)
}

func (w *WeatherStation) AirPressure() (float64, bool) {
	return w.float(model.MeasurementAirPressure)
}

func (w *WeatherStation) Humidity() (float64, bool) {
	return w.float(model.MeasurementHumidity)
}

func (w *WeatherStation) RainAlarm() (bool, bool) {
	return w.bool(model.MeasurementRainAlarm)
}

func (w *WeatherStation) WindAlarm() (bool, bool) {
	return w.bool(model.MeasurementWindAlarm)
}

func (w *WeatherStation) FrostAlarm() (bool, bool) {
	return w.bool(model.MeasurementFrostAlarm)
}

// DayNight returns true for night. The bus value wins; the configured
// fallback covers stations without a bound day_night address.
func (w *WeatherStation) DayNight() (bool, bool) {
	if night, ok := w.bool(model.MeasurementDayNight); ok {
		return night, true
	}
	if w.nightFallback != nil {
		return w.nightFallback(), true
	}
	return false, false
}

// CurrentCondition classifies the station's inputs into a categorical
// condition. Alarms win over the day/night flag, which wins over
// brightness.
func (w *WeatherStation) CurrentCondition() model.WeatherCondition {
	rain, haveRain := w.RainAlarm()
	frost, haveFrost := w.FrostAlarm()
	wind, haveWind := w.WindAlarm()

	switch {
	case haveRain && rain && haveFrost && frost:
		return model.ConditionSnowy
	case haveRain && rain:
		return model.ConditionRainy
	case haveWind && wind:
		return model.ConditionWindy
	case haveFrost && frost:
		return model.ConditionFrost
	}

	if night, ok := w.DayNight(); ok && night {
		return model.ConditionClearNight
	}
	if brightness, ok := w.MaxBrightness(); ok {
		if brightness >= clearSkyLux {
			return model.ConditionClearDay
		}
		return model.ConditionCloudy
	}
	return model.ConditionUnknown
}

func (w *WeatherStation) float(m model.Measurement) (float64, bool) {
	v, err := w.values[m].Float()
	if err != nil {
		return 0, false
	}
	return v, true
}

func (w *WeatherStation) bool(m model.Measurement) (bool, bool) {
	v, err := w.values[m].Bool()
	if err != nil {
		return false, false
	}
	return v, true
}
