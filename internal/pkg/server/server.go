package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/device"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/publisher"
)

type busService interface {
	Sync(ctx context.Context, addresses []model.GroupAddress) error
}

// ReadingsStore serves historical samples; leave it nil to run without
// persistence.
type ReadingsStore interface {
	GetLatestReadings(ctx context.Context, identifier string) (model.Readings, error)
}

type server struct {
	registry *device.Registry
	bus      busService
	db       ReadingsStore
	logger   *zap.Logger
}

func New(registry *device.Registry, bus busService, db ReadingsStore) *server {
	return &server{
		registry: registry,
		bus:      bus,
		db:       db,
		logger:   zap.L(),
	}
}

// Router wires all routes; middlewares are attached by the caller.
func (s *server) Router(middlewares ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	for _, m := range middlewares {
		r.Use(m)
	}
	r.HandleFunc("/stations", s.GetStations).Methods(http.MethodGet)
	r.HandleFunc("/stations/{name}", s.GetStation).Methods(http.MethodGet)
	r.HandleFunc("/stations/{name}/condition", s.GetCondition).Methods(http.MethodGet)
	r.HandleFunc("/stations/{name}/history", s.GetHistory).Methods(http.MethodGet)
	r.HandleFunc("/stations/{name}/sync", s.PostSync).Methods(http.MethodPost)
	r.HandleFunc("/lights/{name}", s.GetLight).Methods(http.MethodGet)
	r.HandleFunc("/lights/{name}/switch", s.PostLightSwitch).Methods(http.MethodPost)
	r.HandleFunc("/lights/{name}/brightness", s.PostLightBrightness).Methods(http.MethodPost)
	r.HandleFunc("/lights/{name}/color_temperature", s.PostLightColorTemperature).Methods(http.MethodPost)
	return r
}

func (s *server) GetStations(w http.ResponseWriter, r *http.Request) {
	stations := s.registry.Stations()
	res := StationListResponse{Stations: []StationSummary{}}
	for _, station := range stations {
		res.Stations = append(res.Stations, StationSummary{
			Name:      station.Name(),
			Condition: station.CurrentCondition().String(),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) GetStation(w http.ResponseWriter, r *http.Request) {
	station, ok := s.station(w, r)
	if !ok {
		return
	}

	res := StationResponse{
		Name:          station.Name(),
		Condition:     station.CurrentCondition().String(),
		ExposeSensors: station.ExposeSensors(),
		SyncState:     station.SyncState(),
		Measurements:  []MeasurementState{},
	}
	for _, m := range []model.Measurement{
		model.MeasurementTemperature,
		model.MeasurementBrightnessSouth,
		model.MeasurementBrightnessWest,
		model.MeasurementBrightnessEast,
		model.MeasurementWindSpeed,
		model.MeasurementRainAlarm,
		model.MeasurementWindAlarm,
		model.MeasurementFrostAlarm,
		model.MeasurementDayNight,
		model.MeasurementAirPressure,
		model.MeasurementHumidity,
	} {
		rv := station.Value(m)
		state := MeasurementState{
			Measurement: m.String(),
			Address:     rv.Address().String(),
			Monitored:   rv.Monitored(),
			Unit:        model.UnitFor(rv.Dpt()),
		}
		if raw, initialized := rv.Raw(); initialized {
			state.Value = &raw
			updatedAt := rv.UpdatedAt().Format(time.RFC3339)
			state.UpdatedAt = &updatedAt
		}
		res.Measurements = append(res.Measurements, state)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) GetCondition(w http.ResponseWriter, r *http.Request) {
	station, ok := s.station(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ConditionResponse{
		Name:      station.Name(),
		Condition: station.CurrentCondition().String(),
	})
}

func (s *server) GetHistory(w http.ResponseWriter, r *http.Request) {
	station, ok := s.station(w, r)
	if !ok {
		return
	}
	if s.db == nil {
		handleError(w, http.StatusServiceUnavailable, errors.New("no readings store configured"))
		return
	}
	readings, err := s.db.GetLatestReadings(r.Context(), publisher.Identifier(station.Registration()))
	if err != nil {
		handleError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *server) PostSync(w http.ResponseWriter, r *http.Request) {
	station, ok := s.station(w, r)
	if !ok {
		return
	}
	if err := s.bus.Sync(r.Context(), station.MonitoredAddresses()); err != nil {
		handleError(w, http.StatusBadGateway, err)
		return
	}
	s.logger.Info("state sync triggered via api", zap.String("station", station.Name()))
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("sync requested"))
}

func (s *server) GetLight(w http.ResponseWriter, r *http.Request) {
	light, ok := s.light(w, r)
	if !ok {
		return
	}
	res := LightResponse{
		Name:                 light.Name(),
		SupportsBrightness:   light.SupportsBrightness(),
		SupportsColor:        light.SupportsColor(),
		SupportsTunableWhite: light.SupportsTunableWhite(),
		SupportsColorTemp:    light.SupportsColorTemperature(),
	}
	if on, known := light.IsOn(); known {
		res.On = &on
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) PostLightSwitch(w http.ResponseWriter, r *http.Request) {
	light, ok := s.light(w, r)
	if !ok {
		return
	}
	payload, err := unmarshalPayload[SwitchPayload](r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	action := light.TurnOff
	if payload.On {
		action = light.TurnOn
	}
	if err := action(); err != nil {
		handleDeviceError(w, err)
		return
	}
	s.logger.Info("light switched", zap.String("light", light.Name()), zap.Bool("on", payload.On))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) PostLightBrightness(w http.ResponseWriter, r *http.Request) {
	light, ok := s.light(w, r)
	if !ok {
		return
	}
	payload, err := unmarshalPayload[BrightnessPayload](r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	if err := light.SetBrightness(payload.Brightness); err != nil {
		handleDeviceError(w, err)
		return
	}
	s.logger.Info("light dimmed", zap.String("light", light.Name()), zap.Int("brightness", payload.Brightness))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) PostLightColorTemperature(w http.ResponseWriter, r *http.Request) {
	light, ok := s.light(w, r)
	if !ok {
		return
	}
	payload, err := unmarshalPayload[ColorTemperaturePayload](r)
	if err != nil {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	if err := light.SetColorTemperature(payload.Kelvin); err != nil {
		handleDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) station(w http.ResponseWriter, r *http.Request) (*device.WeatherStation, bool) {
	name := mux.Vars(r)["name"]
	d, ok := s.registry.Get(name)
	if !ok {
		handleError(w, http.StatusNotFound, errors.New("unknown station "+name))
		return nil, false
	}
	station, ok := d.(*device.WeatherStation)
	if !ok {
		handleError(w, http.StatusNotFound, errors.New(name+" is not a weather station"))
		return nil, false
	}
	return station, true
}

func (s *server) light(w http.ResponseWriter, r *http.Request) (*device.Light, bool) {
	name := mux.Vars(r)["name"]
	d, ok := s.registry.Get(name)
	if !ok {
		handleError(w, http.StatusNotFound, errors.New("unknown light "+name))
		return nil, false
	}
	light, ok := d.(*device.Light)
	if !ok {
		handleError(w, http.StatusNotFound, errors.New(name+" is not a light"))
		return nil, false
	}
	return light, true
}

func handleDeviceError(w http.ResponseWriter, err error) {
	var illegal *buserr.DeviceIllegalValue
	if errors.As(err, &illegal) {
		handleError(w, http.StatusBadRequest, err)
		return
	}
	handleError(w, http.StatusBadGateway, err)
}

func handleError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
