package knx

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/publisher"
	ws "github.com/mbeckers/knx-weather-integration/pkg/sockets"
)

// SyncAll sends a GroupValueRead for every bound address of every device
// with sync_state enabled. Responses arrive as ordinary telegrams.
func (s *service) SyncAll(ctx context.Context) error {
	return s.Sync(ctx, s.registry.SyncAddresses())
}

// Sync requests the current value of the given group addresses.
func (s *service) Sync(ctx context.Context, addresses []model.GroupAddress) error {
	s.mu.Lock()
	conn, token := s.conn, s.token
	s.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return buserr.NewCommunicationError("not connected to gateway", nil)
	}

	for _, ga := range addresses {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := json.Marshal(model.GroupReadRequest{
			Request: model.Request{
				Service: model.GroupRead.String(),
				Token:   token,
			},
			Destination: ga,
		})
		if err != nil {
			return err
		}
		if err := conn.Send(ws.Msg{Body: data}); err != nil {
			return buserr.NewCommunicationError("group read failed for "+ga.String(), err)
		}
	}
	s.logger.Debug("state sync requested", zap.Int("addresses", len(addresses)))
	return nil
}

// GroupWrite issues a group write telegram; devices use this to command
// actuators.
func (s *service) GroupWrite(destination model.GroupAddress, dpt model.DptName, value string) error {
	if err := destination.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	conn, token := s.conn, s.token
	s.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		return buserr.NewCommunicationError("not connected to gateway", nil)
	}

	data, err := json.Marshal(model.GroupWriteRequest{
		Request: model.Request{
			Service: model.GroupWrite.String(),
			Token:   token,
		},
		Destination: destination,
		Dpt:         dpt,
		Value:       value,
	})
	if err != nil {
		return err
	}
	if err := conn.Send(ws.Msg{Body: data}); err != nil {
		return buserr.NewCommunicationError("group write failed for "+destination.String(), err)
	}
	s.logger.Debug("group write sent",
		zap.String("destination", destination.String()),
		zap.String("dpt", dpt.String()),
		zap.String("value", value))
	return nil
}

// RegisterDevices announces every sensor-exposing device to the
// registered publishers.
func (s *service) RegisterDevices() {
	for _, d := range s.registry.Devices() {
		if !d.ExposeSensors() {
			continue
		}
		registration := d.Registration()
		if err := publisher.RegisterDevice(&registration); err != nil {
			s.sendIfErr(err)
		}
	}
}
