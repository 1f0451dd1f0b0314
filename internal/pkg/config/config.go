package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	BusCfg      *BusConfig
	MqttCfg     *MqttConfig
	DevicesFile string `env:"DEVICES_FILE"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`
	ApiToken    string `env:"API_TOKEN_HASH"`
}

// BusConfig holds the connection settings for the knxd web gateway.
type BusConfig struct {
	Host         string        `env:"KNX_GATEWAY_HOST"`
	Ssl          bool          `env:"KNX_GATEWAY_SSL"`
	ClientName   string        `env:"KNX_CLIENT_NAME" envDefault:"knx-weather-controller"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
}

type MqttConfig struct {
	Host     string `env:"MQTT_HOST"`
	Username string `env:"MQTT_USER"`
	Password string `env:"MQTT_PASS"`
}

// Location is used for the sunrise/sunset day-night fallback when no
// day_night group address is bound.
type Location struct {
	Latitude  float64 `env:"SITE_LATITUDE" yaml:"latitude"`
	Longitude float64 `env:"SITE_LONGITUDE" yaml:"longitude"`
}

// FromEnv builds the base Config from environment variables. CLI flags
// passed on the command line override these values.
func FromEnv() (*Config, error) {
	cfg := &Config{
		BusCfg:  &BusConfig{},
		MqttCfg: &MqttConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
