package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

var (
	mu                   sync.Mutex
	registeredPublishers = make(map[string]publisher)
	sensors              sync.Map
)

type publisher interface {
	// Write delivers deduplicated measurement updates to the sink.
	Write(ctx context.Context, data []map[string]any) error
	RegisterDevice(device *model.Device) error
}

func RegisterPublisher(name string, p publisher) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registeredPublishers[name]; ok {
		return errAlreadyRegistered
	}
	registeredPublishers[name] = p
	return nil
}

// Reset drops all registered publishers and cached sensor values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registeredPublishers = make(map[string]publisher)
	sensors = sync.Map{}
}

// PublishData fans measurement updates out to every registered sink.
// Unchanged values are dropped so sinks only see transitions.
func PublishData(ctx context.Context, deviceStatusMap map[model.Device][]model.DeviceStatus) error {
	count := 0
	data := make([]map[string]any, 0)
	for dev, statuses := range deviceStatusMap {
		for _, status := range statuses {
			if status.Value == nil {
				continue
			}
			identifier := Identifier(dev)

			if !shouldUpdate(identifier, status.Slug, *status.Value) {
				continue
			}
			count++
			payload := map[string]any{
				"value":               *status.Value,
				"slug":                status.Slug,
				"timestamp":           time.Now(),
				"identifier":          identifier,
				"unit_of_measurement": normalizeUnit(status.Unit),
			}
			data = append(data, payload)
		}
	}
	if len(data) == 0 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	for name, p := range registeredPublishers {
		if err := p.Write(ctx, data); err != nil {
			zap.L().Error("failed to publish data", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("updated sensors", zap.Int("count", count), zap.String("publisher", name))
	}
	return nil
}

func RegisterDevice(device *model.Device) error {
	mu.Lock()
	defer mu.Unlock()
	for name, p := range registeredPublishers {
		if err := p.RegisterDevice(device); err != nil {
			zap.L().Error("failed to register device", zap.Error(err), zap.String("publisher", name))
			continue
		}
		zap.L().Debug("registered device", zap.String("device", device.Name), zap.String("publisher", name))
	}
	return nil
}

func shouldUpdate(identifier, sensorSlug, newValue string) bool {
	key := fmt.Sprintf("%s_%s", identifier, sensorSlug)
	oldValue, exists := sensors.Load(key)
	if exists && strings.EqualFold(newValue, oldValue.(string)) {
		return false
	}
	if !exists {
		zap.L().Info("configured sensor", zap.String("device", identifier), zap.String("sensor", sensorSlug), zap.String("value", newValue))
	}
	sensors.Store(key, newValue)
	return true
}

// Identifier derives the stable sensor identifier of a device; sinks and
// the API use the same derivation.
func Identifier(dev model.Device) string {
	return slugify(fmt.Sprintf("%s %s", dev.Model, dev.Name))
}

func slugify(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}

// normalizeUnit maps gateway unit spellings to the ones Home Assistant
// expects.
func normalizeUnit(unit string) string {
	switch unit {
	case "℃":
		return "°C"
	case "Lux":
		return "lx"
	default:
		return unit
	}
}
