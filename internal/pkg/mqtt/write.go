package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

func (s *service) Write(ctx context.Context, data []map[string]any) error {
	for _, d := range data {
		if err := s.PublishData(d); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDevice announces a device once; per-sensor discovery configs
// follow lazily with the first value of each sensor.
func (s *service) RegisterDevice(device *model.Device) error {
	s.mu.Lock()
	if _, exists := s.configuredDevices[device.ID]; exists {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.publishDiscovery(device, "condition", ""); err != nil {
		return err
	}
	s.mu.Lock()
	s.configuredDevices[device.ID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *service) PublishData(data map[string]any) error {
	identifier := data["identifier"].(string)
	sensorSlug := data["slug"].(string)
	isTextSensor := model.TextSensors.Has(sensorSlug)

	if err := s.registerSensor(identifier, sensorSlug, data["unit_of_measurement"].(string)); err != nil {
		return err
	}

	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/state", identifier, sensorSlug)
	payload := map[string]string{
		"value": data["value"].(string),
	}
	if !isTextSensor {
		payload["unit_of_measurement"] = data["unit_of_measurement"].(string)
	}

	publishData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, 0, false, publishData)
	if res := token.WaitTimeout(time.Second * 10); res {
		return nil
	}
	return token.Error()
}

func (s *service) registerSensor(identifier, sensorSlug, unit string) error {
	key := identifier + "_" + sensorSlug
	s.mu.Lock()
	if _, exists := s.configuredSensors[key]; exists {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	device := &model.Device{ID: identifier, Name: identifier, Model: "sensor"}
	if err := s.publishDiscovery(device, sensorSlug, unit); err != nil {
		return err
	}
	s.mu.Lock()
	s.configuredSensors[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *service) publishDiscovery(device *model.Device, sensorSlug, unit string) error {
	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", device.ID, sensorSlug)
	payload, err := json.Marshal(discoveryMsg(device, sensorSlug, unit))
	if err != nil {
		return err
	}
	token := s.client.Publish(topic, 1, true, payload)
	if res := token.WaitTimeout(time.Second * 5); res {
		return nil
	}
	return token.Error()
}

func discoveryMsg(device *model.Device, sensorSlug, unit string) model.RegisterMessage {
	name := fmt.Sprintf("%s %s", device.Name, strings.ReplaceAll(sensorSlug, "_", " "))

	return model.RegisterMessage{
		Tilda:       fmt.Sprintf("homeassistant/sensor/%s/%s", device.ID, sensorSlug),
		Name:        name,
		ID:          strings.ToLower(fmt.Sprintf("%s_%s", device.ID, sensorSlug)),
		StateTopic:  "~/state",
		Unit:        unit,
		DeviceClass: deviceClassFor(sensorSlug),
		Device: model.RegisterDevice{
			Name:         device.Name,
			Identifiers:  []string{device.ID},
			Model:        device.Model,
			Manufacturer: "KNX",
		},
	}
}

// https://www.home-assistant.io/integrations/sensor/#device-class
func deviceClassFor(sensorSlug string) string {
	switch model.Measurement(sensorSlug) {
	case model.MeasurementTemperature:
		return "temperature"
	case model.MeasurementHumidity:
		return "humidity"
	case model.MeasurementAirPressure:
		return "pressure"
	case model.MeasurementWindSpeed:
		return "wind_speed"
	case model.MeasurementBrightnessSouth, model.MeasurementBrightnessWest, model.MeasurementBrightnessEast:
		return "illuminance"
	default:
		return ""
	}
}
