package model

import (
	"strconv"
	"strings"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
)

// GroupAddress is a three-level KNX group address in "main/middle/sub"
// notation, e.g. "7/0/2". The zero value means "not bound".
type GroupAddress string

func (ga GroupAddress) String() string {
	return string(ga)
}

// IsSet reports whether the address is bound. Presence of a value is the
// only signal needed to enable tracking for a measurement.
func (ga GroupAddress) IsSet() bool {
	return ga != ""
}

// Validate checks the "main/middle/sub" format and the KNX range limits
// (main 0-31, middle 0-7, sub 0-255). An unbound address is valid.
func (ga GroupAddress) Validate() error {
	if !ga.IsSet() {
		return nil
	}
	parts := strings.Split(string(ga), "/")
	if len(parts) != 3 {
		return buserr.NewCouldNotParseAddress(string(ga))
	}
	limits := []int{31, 7, 255}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return buserr.NewCouldNotParseAddress(string(ga))
		}
	}
	return nil
}

// Service identifies which gateway message a payload belongs to.
type Service string

func (s Service) String() string {
	return string(s)
}

const (
	Connect    Service = "connect"
	Heartbeat  Service = "heartbeat"
	Telegram   Service = "telegram"
	GroupRead  Service = "groupread"
	GroupWrite Service = "groupwrite"
)

// Direction tells whether the gateway observed a telegram incoming from
// the bus or sent one outward.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// DptName names the external data-point type a bound address is decoded
// with. Decoding happens in the gateway; the name is carried through to
// publishers so sinks can pick units and device classes.
type DptName string

func (d DptName) String() string {
	return string(d)
}

const (
	DptSwitch      DptName = "1.001"
	DptAlarm       DptName = "1.005"
	DptDayNight    DptName = "1.024"
	DptScaling     DptName = "5.001"
	DptColorRGB    DptName = "232.600"
	DptColorRGBW   DptName = "251.600"
	Dpt2ByteUint   DptName = "7.600"
	DptTemperature DptName = "9.001"
	DptLux         DptName = "9.004"
	DptWindSpeed   DptName = "9.005"
	DptPressure    DptName = "9.006"
	DptHumidity    DptName = "9.007"
)

// UnitFor maps a data-point type to its unit of measurement. Types
// without a unit are published as text sensors.
func UnitFor(dpt DptName) string {
	switch dpt {
	case DptTemperature:
		return "°C"
	case DptLux:
		return "lx"
	case DptWindSpeed:
		return "m/s"
	case DptPressure:
		return "Pa"
	case DptHumidity, DptScaling:
		return "%"
	case Dpt2ByteUint:
		return "K"
	default:
		return ""
	}
}

// WeatherCondition is the categorical classification derived from the
// alarm, day/night and brightness inputs of a weather station.
type WeatherCondition string

func (wc WeatherCondition) String() string {
	return string(wc)
}

const (
	ConditionUnknown    WeatherCondition = "unknown"
	ConditionClearDay   WeatherCondition = "clear_day"
	ConditionClearNight WeatherCondition = "clear_night"
	ConditionCloudy     WeatherCondition = "cloudy"
	ConditionRainy      WeatherCondition = "rainy"
	ConditionSnowy      WeatherCondition = "snowy"
	ConditionWindy      WeatherCondition = "windy"
	ConditionFrost      WeatherCondition = "frost"
)

// Measurement is the semantic slot a group address is bound to.
type Measurement string

func (m Measurement) String() string {
	return string(m)
}

const (
	MeasurementTemperature     Measurement = "temperature"
	MeasurementBrightnessSouth Measurement = "brightness_south"
	MeasurementBrightnessWest  Measurement = "brightness_west"
	MeasurementBrightnessEast  Measurement = "brightness_east"
	MeasurementWindSpeed       Measurement = "wind_speed"
	MeasurementRainAlarm       Measurement = "rain_alarm"
	MeasurementWindAlarm       Measurement = "wind_alarm"
	MeasurementFrostAlarm      Measurement = "frost_alarm"
	MeasurementDayNight        Measurement = "day_night"
	MeasurementAirPressure     Measurement = "air_pressure"
	MeasurementHumidity        Measurement = "humidity"
)

type TextMeasurements []Measurement

func (tm TextMeasurements) Has(slug string) bool {
	for _, t := range tm {
		if t.String() == slug {
			return true
		}
	}
	return false
}

// TextSensors are published without a unit of measurement.
var TextSensors = TextMeasurements{
	MeasurementRainAlarm,
	MeasurementWindAlarm,
	MeasurementFrostAlarm,
	MeasurementDayNight,
}
