package server

// MeasurementState is one measurement of a station as returned by the
// API. Value is null while unmonitored or uninitialized.
type MeasurementState struct {
	Measurement string  `json:"measurement"`
	Address     string  `json:"group_address,omitempty"`
	Monitored   bool    `json:"monitored"`
	Value       *string `json:"value"`
	Unit        string  `json:"unit,omitempty"`
	UpdatedAt   *string `json:"updated_at,omitempty"`
}

type StationResponse struct {
	Name          string             `json:"name"`
	Condition     string             `json:"condition"`
	ExposeSensors bool               `json:"expose_sensors"`
	SyncState     bool               `json:"sync_state"`
	Measurements  []MeasurementState `json:"measurements"`
}

type StationListResponse struct {
	Stations []StationSummary `json:"stations"`
}

type StationSummary struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
}

type ConditionResponse struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
}

type LightResponse struct {
	Name                 string `json:"name"`
	On                   *bool  `json:"on"`
	SupportsBrightness   bool   `json:"supports_brightness"`
	SupportsColor        bool   `json:"supports_color"`
	SupportsTunableWhite bool   `json:"supports_tunable_white"`
	SupportsColorTemp    bool   `json:"supports_color_temperature"`
}

type SwitchPayload struct {
	On bool `json:"on"`
}

type BrightnessPayload struct {
	Brightness int `json:"brightness"`
}

type ColorTemperaturePayload struct {
	Kelvin int `json:"kelvin"`
}
