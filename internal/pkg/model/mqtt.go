package model

type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// RegisterMessage is a Home Assistant MQTT discovery config payload for
// one exposed sensor entity.
type RegisterMessage struct {
	Tilda       string         `json:"~"`
	Name        string         `json:"name"`
	ID          string         `json:"unique_id"`
	StateTopic  string         `json:"state_topic"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	Device      RegisterDevice `json:"device"`
}

// Device identifies a registered station or light towards publishers.
type Device struct {
	ID    string
	Name  string
	Model string
}

// DeviceStatus is one measurement update fanned out to publishers. A nil
// Value means the source delivered no usable sample.
type DeviceStatus struct {
	Name  string  `json:"name"`
	Slug  string  `json:"slug"`
	Value *string `json:"value"`
	Unit  string  `json:"unit"`
	Dirty bool    `json:"dirty"`
}
