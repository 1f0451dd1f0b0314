package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// DefaultServer is the public Open-Meteo endpoint.
const DefaultServer = "https://api.open-meteo.com"

type client struct {
	httpClient *http.Client
	logger     *zap.Logger
	server     string
	latitude   float64
	longitude  float64
}

func New(server string, latitude, longitude float64) *client {
	if server == "" {
		server = DefaultServer
	}
	return &client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.L(),
		server:     server,
		latitude:   latitude,
		longitude:  longitude,
	}
}

// Current is one forecast sample for the configured site.
type Current struct {
	Time        time.Time
	Temperature float64
	Humidity    float64
	Pressure    float64
	WindSpeed   float64
	IsDay       bool
}

type currentResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		Pressure    float64 `json:"surface_pressure"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		IsDay       int     `json:"is_day"`
	} `json:"current"`
}

// GetCurrent fetches the current conditions for the configured site.
func (c *client) GetCurrent(ctx context.Context) (*Current, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.longitude, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,is_day")
	q.Set("wind_speed_unit", "ms")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast request failed with status %d", res.StatusCode)
	}

	parsed := currentResponse{}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	sampleTime, err := time.Parse("2006-01-02T15:04", parsed.Current.Time)
	if err != nil {
		sampleTime = time.Now().UTC()
	}
	return &Current{
		Time:        sampleTime,
		Temperature: parsed.Current.Temperature,
		Humidity:    parsed.Current.Humidity,
		Pressure:    parsed.Current.Pressure,
		WindSpeed:   parsed.Current.WindSpeed,
		IsDay:       parsed.Current.IsDay == 1,
	}, nil
}

// Statuses converts a sample into publisher updates for the forecast
// pseudo-device.
func (c *client) Statuses(current *Current) (model.Device, []model.DeviceStatus) {
	dev := model.Device{
		ID:    "forecast_site",
		Name:  "site forecast",
		Model: "forecast",
	}
	toPtr := func(f float64) *string {
		s := strconv.FormatFloat(f, 'f', 2, 64)
		return &s
	}
	dayNight := "0"
	if !current.IsDay {
		dayNight = "1"
	}
	statuses := []model.DeviceStatus{
		{Name: "forecast temperature", Slug: "forecast_temperature", Value: toPtr(current.Temperature), Unit: "°C", Dirty: true},
		{Name: "forecast humidity", Slug: "forecast_humidity", Value: toPtr(current.Humidity), Unit: "%", Dirty: true},
		{Name: "forecast air pressure", Slug: "forecast_air_pressure", Value: toPtr(current.Pressure), Unit: "hPa", Dirty: true},
		{Name: "forecast wind speed", Slug: "forecast_wind_speed", Value: toPtr(current.WindSpeed), Unit: "m/s", Dirty: true},
		{Name: "forecast day night", Slug: "forecast_day_night", Value: &dayNight, Unit: "", Dirty: true},
	}
	return dev, statuses
}
