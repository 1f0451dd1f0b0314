package cmd

import (
	"context"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// KnxService defines the interface that cmd.run expects from the bus
// client service.
type KnxService interface {
	Connect(ctx context.Context) error
	Reconnect() error
	SubscribeToTimeout() chan error
	SyncAll(ctx context.Context) error
	GroupWrite(destination model.GroupAddress, dpt model.DptName, value string) error
	RegisterDevices()
}
