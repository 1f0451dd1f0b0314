package knx

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/contxt"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/publisher"
)

// handleTelegramMessage routes one decoded group telegram to every
// monitoring device and fans the resulting updates out to publishers.
func (s *service) handleTelegramMessage(data []byte) {
	s.logger.Debug("handleTelegramMessage")
	res := model.ParsedResult[model.TelegramEvent]{}
	if err := json.Unmarshal(data, &res); err != nil {
		s.sendIfErr(buserr.NewCouldNotParseTelegram(err.Error(), ""))
		return
	}
	ev := res.ResultData
	if !ev.Destination.IsSet() {
		s.sendIfErr(buserr.NewCouldNotParseTelegram("telegram without destination", ""))
		return
	}
	if err := ev.Destination.Validate(); err != nil {
		s.sendIfErr(err)
		return
	}

	updates := s.registry.HandleTelegram(ev)
	if len(updates) == 0 {
		s.logger.Debug("telegram for unmonitored address", zap.String("destination", ev.Destination.String()))
		return
	}
	err := publisher.PublishData(contxt.NewContext(time.Second*5), s.filterExposed(updates))
	s.sendIfErr(err)
}

// filterExposed drops updates of devices that do not expose sensors;
// their state is still tracked in the registry for API reads.
func (s *service) filterExposed(updates map[model.Device][]model.DeviceStatus) map[model.Device][]model.DeviceStatus {
	exposed := make(map[model.Device][]model.DeviceStatus, len(updates))
	for dev, statuses := range updates {
		d, ok := s.registry.Get(dev.Name)
		if !ok || !d.ExposeSensors() {
			continue
		}
		exposed[dev] = statuses
	}
	return exposed
}
