package device

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

func fullStationConfig() *config.WeatherConfig {
	return &config.WeatherConfig{
		Name:                        "roof",
		GroupAddressTemperature:     "7/0/0",
		GroupAddressBrightnessSouth: "7/0/1",
		GroupAddressBrightnessWest:  "7/0/2",
		GroupAddressBrightnessEast:  "7/0/3",
		GroupAddressWindSpeed:       "7/0/4",
		GroupAddressRainAlarm:       "7/0/5",
		GroupAddressWindAlarm:       "7/0/6",
		GroupAddressFrostAlarm:      "7/0/7",
		GroupAddressDayNight:        "7/0/8",
		GroupAddressAirPressure:     "7/0/9",
		GroupAddressHumidity:        "7/0/10",
		ExposeSensors:               true,
		SyncState:                   true,
	}
}

func telegram(destination model.GroupAddress, value string) model.TelegramEvent {
	return model.TelegramEvent{
		Service:     model.Telegram.String(),
		Destination: destination,
		Value:       value,
	}
}

func TestWeatherStationHandleTelegram(t *testing.T) {
	station := NewWeatherStation(fullStationConfig())

	assert.True(t, station.Monitors("7/0/0"))
	assert.False(t, station.Monitors("9/9/9"))

	statuses := station.HandleTelegram(telegram("7/0/0", "21.5"))
	assert.Len(t, statuses, 1)
	assert.Equal(t, "temperature", statuses[0].Slug)
	assert.Equal(t, "21.5", *statuses[0].Value)
	assert.Equal(t, "°C", statuses[0].Unit)
	assert.True(t, statuses[0].Dirty)

	temp, ok := station.Temperature()
	assert.True(t, ok)
	assert.Equal(t, 21.5, temp)

	// unchanged value does not produce a status
	assert.Empty(t, station.HandleTelegram(telegram("7/0/0", "21.5")))
	// unrelated destination does not either
	assert.Empty(t, station.HandleTelegram(telegram("9/9/9", "1")))
}

func TestWeatherStationUnsetAddressStaysUninitialized(t *testing.T) {
	station := NewWeatherStation(&config.WeatherConfig{
		Name:                    "minimal",
		GroupAddressTemperature: "7/0/0",
	})

	assert.False(t, station.Monitors("7/0/4"))
	assert.Empty(t, station.HandleTelegram(telegram("7/0/4", "12.0")))

	_, ok := station.WindSpeed()
	assert.False(t, ok)
	_, ok = station.RainAlarm()
	assert.False(t, ok)
}

func TestWeatherStationMaxBrightness(t *testing.T) {
	station := NewWeatherStation(fullStationConfig())

	_, ok := station.MaxBrightness()
	assert.False(t, ok)

	station.HandleTelegram(telegram("7/0/1", "12000"))
	station.HandleTelegram(telegram("7/0/2", "48000"))
	station.HandleTelegram(telegram("7/0/3", "300"))

	max, ok := station.MaxBrightness()
	assert.True(t, ok)
	assert.Equal(t, 48000.0, max)
}

func TestWeatherStationCurrentCondition(t *testing.T) {
	tests := []struct {
		name      string
		telegrams map[model.GroupAddress]string
		want      model.WeatherCondition
	}{
		{
			name: "no data",
			want: model.ConditionUnknown,
		},
		{
			name:      "rain and frost means snow",
			telegrams: map[model.GroupAddress]string{"7/0/5": "1", "7/0/7": "1"},
			want:      model.ConditionSnowy,
		},
		{
			name:      "rain alone",
			telegrams: map[model.GroupAddress]string{"7/0/5": "1", "7/0/7": "0"},
			want:      model.ConditionRainy,
		},
		{
			name:      "wind alarm",
			telegrams: map[model.GroupAddress]string{"7/0/6": "1"},
			want:      model.ConditionWindy,
		},
		{
			name:      "frost alone",
			telegrams: map[model.GroupAddress]string{"7/0/7": "1"},
			want:      model.ConditionFrost,
		},
		{
			name:      "rain wins over wind",
			telegrams: map[model.GroupAddress]string{"7/0/5": "1", "7/0/6": "1"},
			want:      model.ConditionRainy,
		},
		{
			name:      "night wins over brightness",
			telegrams: map[model.GroupAddress]string{"7/0/8": "1", "7/0/1": "40000"},
			want:      model.ConditionClearNight,
		},
		{
			name:      "bright day",
			telegrams: map[model.GroupAddress]string{"7/0/8": "0", "7/0/1": "40000"},
			want:      model.ConditionClearDay,
		},
		{
			name:      "overcast day",
			telegrams: map[model.GroupAddress]string{"7/0/8": "0", "7/0/1": "800"},
			want:      model.ConditionCloudy,
		},
		{
			name:      "cleared alarms fall through to brightness",
			telegrams: map[model.GroupAddress]string{"7/0/5": "0", "7/0/6": "0", "7/0/7": "0", "7/0/1": "30000"},
			want:      model.ConditionClearDay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := NewWeatherStation(fullStationConfig())
			for ga, value := range tt.telegrams {
				station.HandleTelegram(telegram(ga, value))
			}
			assert.Equal(t, tt.want, station.CurrentCondition())
		})
	}
}

func TestWeatherStationDayNightFallback(t *testing.T) {
	cfg := &config.WeatherConfig{
		Name:                    "no-twilight-sensor",
		GroupAddressTemperature: "7/0/0",
	}
	station := NewWeatherStation(cfg).WithNightFallback(func() bool { return true })

	night, ok := station.DayNight()
	assert.True(t, ok)
	assert.True(t, night)
	assert.Equal(t, model.ConditionClearNight, station.CurrentCondition())

	// a bound day_night address takes precedence over the fallback
	busStation := NewWeatherStation(fullStationConfig()).WithNightFallback(func() bool { return true })
	busStation.HandleTelegram(telegram("7/0/8", "0"))
	night, ok = busStation.DayNight()
	assert.True(t, ok)
	assert.False(t, night)
}

func TestWeatherStationSyncAddresses(t *testing.T) {
	station := NewWeatherStation(fullStationConfig())
	addresses := station.SyncAddresses()
	assert.Len(t, addresses, 11)
	assert.Equal(t, model.GroupAddress("7/0/0"), addresses[0])

	noSync := fullStationConfig()
	noSync.SyncState = false
	assert.Nil(t, NewWeatherStation(noSync).SyncAddresses())
}

func TestWeatherStationMonitoredAddresses(t *testing.T) {
	cfg := fullStationConfig()
	cfg.SyncState = false
	station := NewWeatherStation(cfg)

	// explicit sync requests cover every bound address even with
	// sync_state off
	addresses := station.MonitoredAddresses()
	assert.Len(t, addresses, 11)
	assert.Equal(t, model.GroupAddress("7/0/0"), addresses[0])

	sparse := NewWeatherStation(&config.WeatherConfig{
		Name:                    "sparse",
		GroupAddressTemperature: "7/0/0",
	})
	assert.Equal(t, []model.GroupAddress{"7/0/0"}, sparse.MonitoredAddresses())
}

func TestWeatherStationRegistration(t *testing.T) {
	station := NewWeatherStation(fullStationConfig())
	reg := station.Registration()
	assert.Equal(t, "weather_roof", reg.ID)
	assert.Equal(t, "weather-station", reg.Model)
	assert.True(t, station.ExposeSensors())

	hidden := NewWeatherStation(&config.WeatherConfig{Name: "hidden"})
	assert.False(t, hidden.ExposeSensors(), "sensors are not exposed unless opted in")
}
