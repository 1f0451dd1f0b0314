package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/device"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

func runBuildConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var cfg *config.Config
	var buildErr error
	app := &cli.App{
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "knx-gateway-host"},
			&cli.StringFlag{Name: "devices-file"},
			&cli.StringFlag{Name: "mqtt-host"},
			&cli.DurationFlag{Name: "poll-interval"},
			&cli.StringFlag{Name: "log-level"},
		},
		Action: func(ctx *cli.Context) error {
			cfg, buildErr = buildConfig(ctx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"app"}, args...)))
	return cfg, buildErr
}

func TestBuildConfigFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("KNX_GATEWAY_HOST", "env.local")
	t.Setenv("DEVICES_FILE", "/etc/devices.yaml")
	t.Setenv("MQTT_HOST", "tcp://broker:1883")

	cfg, err := runBuildConfig(t,
		"--knx-gateway-host", "flag.local",
		"--poll-interval", "5m")
	require.NoError(t, err)

	assert.Equal(t, "flag.local", cfg.BusCfg.Host, "flag wins over environment")
	assert.Equal(t, "/etc/devices.yaml", cfg.DevicesFile, "environment fills unset flags")
	assert.Equal(t, "tcp://broker:1883", cfg.MqttCfg.Host)
	assert.Equal(t, 5*time.Minute, cfg.BusCfg.PollInterval)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "knx-weather-controller", cfg.BusCfg.ClientName)
}

func TestBuildConfigRequiresHostAndDevicesFile(t *testing.T) {
	t.Setenv("KNX_GATEWAY_HOST", "")
	t.Setenv("DEVICES_FILE", "")

	_, err := runBuildConfig(t, "--devices-file", "/etc/devices.yaml")
	assert.Error(t, err)

	_, err = runBuildConfig(t, "--knx-gateway-host", "gateway.local")
	assert.Error(t, err)

	_, err = runBuildConfig(t,
		"--knx-gateway-host", "gateway.local",
		"--devices-file", "/etc/devices.yaml")
	assert.NoError(t, err)
}

type noopWriter struct{}

func (noopWriter) GroupWrite(_ model.GroupAddress, _ model.DptName, _ string) error {
	return nil
}

func TestPopulateRegistry(t *testing.T) {
	registry := device.NewRegistry()
	cfg := &config.DevicesConfig{
		Location: config.Location{Latitude: 52.52, Longitude: 13.405},
		Stations: []config.WeatherConfig{
			{Name: "roof", GroupAddressTemperature: "7/0/0", GroupAddressDayNight: "7/0/8"},
			{Name: "garden", GroupAddressTemperature: "7/1/0"},
		},
		Lights: []config.LightConfig{
			{Name: "office", GroupAddressSwitch: "1/0/1"},
		},
	}

	require.NoError(t, populateRegistry(registry, cfg, noopWriter{}))
	assert.Len(t, registry.Stations(), 2)
	assert.Len(t, registry.Lights(), 1)

	// garden has no day_night address, so the location-based fallback kicks in
	garden, ok := registry.Get("garden")
	require.True(t, ok)
	_, known := garden.(*device.WeatherStation).DayNight()
	assert.True(t, known)

	// roof reads day/night from the bus and stays unknown until a telegram arrives
	roof, ok := registry.Get("roof")
	require.True(t, ok)
	_, known = roof.(*device.WeatherStation).DayNight()
	assert.False(t, known)
}

func TestPopulateRegistryWithoutLocation(t *testing.T) {
	registry := device.NewRegistry()
	cfg := &config.DevicesConfig{
		Stations: []config.WeatherConfig{{Name: "garden", GroupAddressTemperature: "7/1/0"}},
	}

	require.NoError(t, populateRegistry(registry, cfg, noopWriter{}))
	garden, _ := registry.Get("garden")
	_, known := garden.(*device.WeatherStation).DayNight()
	assert.False(t, known, "no fallback without a configured location")
}

func TestPopulateRegistryDuplicateNames(t *testing.T) {
	registry := device.NewRegistry()
	cfg := &config.DevicesConfig{
		Stations: []config.WeatherConfig{{Name: "roof"}},
		Lights:   []config.LightConfig{{Name: "roof"}},
	}

	assert.Error(t, populateRegistry(registry, cfg, noopWriter{}))
}
