package knx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/device"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/publisher"
	ws "github.com/mbeckers/knx-weather-integration/pkg/sockets"
)

type fakeConn struct {
	mu        sync.Mutex
	sent      [][]byte
	connected bool
	sendErr   error
}

func (f *fakeConn) Dial(_ context.Context, _, _ string) error {
	f.connected = true
	return nil
}

func (f *fakeConn) Send(msg ws.Msg) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg.Body)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) IsConnected() bool {
	return f.connected
}

func (f *fakeConn) Close() error {
	f.connected = false
	return nil
}

func (f *fakeConn) sentMessages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.sent...)
}

func newTestService(t *testing.T) (*service, *device.WeatherStation, *fakeConn, chan error) {
	t.Helper()
	publisher.Reset()
	t.Cleanup(publisher.Reset)

	registry := device.NewRegistry()
	station := device.NewWeatherStation(&config.WeatherConfig{
		Name:                    "roof",
		GroupAddressTemperature: "7/0/0",
		GroupAddressRainAlarm:   "7/0/5",
		ExposeSensors:           true,
		SyncState:               true,
	})
	require.NoError(t, registry.Add(station))

	errChan := make(chan error, 10)
	svc := New(&config.BusConfig{Host: "gateway.local", ClientName: "test-client"}, registry, errChan)
	svc.logger = zaptest.NewLogger(t)

	conn := &fakeConn{connected: true}
	svc.setConn(conn)
	return svc, station, conn, errChan
}

func telegramPayload(destination, value string) []byte {
	return []byte(`{"result_code":200,"result_msg":"success","result_data":` +
		`{"service":"telegram","destination":"` + destination + `","source":"1.1.8","dpt":"9.001","value":"` + value + `","direction":"incoming"}}`)
}

func TestOnMessageTelegramUpdatesDevice(t *testing.T) {
	svc, station, conn, errChan := newTestService(t)

	svc.onMessage(telegramPayload("7/0/0", "21.5"), conn)

	temp, ok := station.Temperature()
	assert.True(t, ok)
	assert.Equal(t, 21.5, temp)
	assert.Empty(t, errChan)
}

func TestOnMessageReassemblesFragments(t *testing.T) {
	svc, station, conn, errChan := newTestService(t)

	payload := telegramPayload("7/0/0", "18.25")
	split := len(payload) / 2
	svc.onMessage(payload[:split], conn)

	_, ok := station.Temperature()
	assert.False(t, ok, "half a payload must not update anything")

	svc.onMessage(payload[split:], conn)

	temp, ok := station.Temperature()
	assert.True(t, ok)
	assert.Equal(t, 18.25, temp)
	assert.Empty(t, svc.storedData, "buffer is drained after reassembly")
	assert.Empty(t, errChan)
}

func TestOnMessageReassemblyBufferOverflow(t *testing.T) {
	svc, _, conn, _ := newTestService(t)

	svc.storedData = make([]byte, maxStoredDataSize)
	svc.onMessage([]byte(`{"result_code"`), conn)

	assert.Less(t, len(svc.storedData), maxStoredDataSize, "oversized buffer is dropped")
}

func TestOnMessageTelegramWithoutDestination(t *testing.T) {
	svc, _, conn, errChan := newTestService(t)

	svc.onMessage([]byte(`{"result_code":200,"result_msg":"success","result_data":{"service":"telegram","value":"1"}}`), conn)

	var parseErr *buserr.CouldNotParseTelegram
	assert.True(t, errors.As(<-errChan, &parseErr))
}

func TestOnMessageConnectStoresTokenAndSyncs(t *testing.T) {
	svc, _, conn, errChan := newTestService(t)

	svc.onMessage([]byte(`{"result_code":200,"result_msg":"success","result_data":`+
		`{"service":"connect","token":"abc123","gateway":"knxd","version":"0.14"}}`), conn)

	assert.Equal(t, "abc123", svc.token)
	// sync_state devices are primed right after connecting
	require.Len(t, conn.sent, 2)
	req := model.GroupReadRequest{}
	require.NoError(t, json.Unmarshal(conn.sent[0], &req))
	assert.Equal(t, model.GroupRead.String(), req.Service)
	assert.Equal(t, "abc123", req.Token)
	assert.Equal(t, model.GroupAddress("7/0/0"), req.Destination)
	assert.Empty(t, errChan)
}

func TestOnMessageGroupWriteRejected(t *testing.T) {
	svc, _, conn, errChan := newTestService(t)

	svc.onMessage([]byte(`{"result_code":200,"result_msg":"success","result_data":`+
		`{"service":"groupwrite","destination":"1/0/1","accepted":false}}`), conn)

	var commErr *buserr.CommunicationError
	require.True(t, errors.As(<-errChan, &commErr))
	assert.Contains(t, commErr.Error(), "1/0/1")
}

func TestGroupWrite(t *testing.T) {
	svc, _, conn, errChan := newTestService(t)
	svc.token = "abc123"

	require.NoError(t, svc.GroupWrite("1/0/1", model.DptSwitch, "1"))

	require.Len(t, conn.sent, 1)
	req := model.GroupWriteRequest{}
	require.NoError(t, json.Unmarshal(conn.sent[0], &req))
	assert.Equal(t, model.GroupWrite.String(), req.Service)
	assert.Equal(t, "abc123", req.Token)
	assert.Equal(t, model.GroupAddress("1/0/1"), req.Destination)
	assert.Equal(t, model.DptSwitch, req.Dpt)
	assert.Equal(t, "1", req.Value)
	assert.Empty(t, errChan)
}

func TestGroupWriteValidatesDestination(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	var parseErr *buserr.CouldNotParseAddress
	assert.True(t, errors.As(svc.GroupWrite("99/0/0", model.DptSwitch, "1"), &parseErr))
}

func TestGroupWriteNotConnected(t *testing.T) {
	svc, _, conn, _ := newTestService(t)
	conn.connected = false

	var commErr *buserr.CommunicationError
	assert.True(t, errors.As(svc.GroupWrite("1/0/1", model.DptSwitch, "1"), &commErr))
}

func TestSyncAllNotConnected(t *testing.T) {
	svc, _, conn, _ := newTestService(t)
	conn.connected = false

	var commErr *buserr.CommunicationError
	assert.True(t, errors.As(svc.SyncAll(context.Background()), &commErr))
}

func TestSyncAllSendFailure(t *testing.T) {
	svc, _, conn, _ := newTestService(t)
	conn.sendErr = errors.New("broken pipe")

	var commErr *buserr.CommunicationError
	assert.True(t, errors.As(svc.SyncAll(context.Background()), &commErr))
}

func TestSyncAllHonorsContext(t *testing.T) {
	svc, _, conn, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.SyncAll(ctx), context.Canceled)
	assert.Empty(t, conn.sent)
}

func TestFilterExposed(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	hidden := device.NewWeatherStation(&config.WeatherConfig{
		Name:                    "hidden",
		GroupAddressTemperature: "7/1/0",
	})
	require.NoError(t, svc.registry.Add(hidden))

	value := "1.0"
	updates := map[model.Device][]model.DeviceStatus{
		{ID: "weather_roof", Name: "roof", Model: "weather-station"}:     {{Slug: "temperature", Value: &value}},
		{ID: "weather_hidden", Name: "hidden", Model: "weather-station"}: {{Slug: "temperature", Value: &value}},
	}

	exposed := svc.filterExposed(updates)
	require.Len(t, exposed, 1)
	for dev := range exposed {
		assert.Equal(t, "roof", dev.Name)
	}
}

func TestSyncRequestsOnlyGivenAddresses(t *testing.T) {
	svc, _, conn, errChan := newTestService(t)
	svc.token = "abc123"

	require.NoError(t, svc.Sync(context.Background(), []model.GroupAddress{"7/0/5"}))

	require.Len(t, conn.sent, 1)
	req := model.GroupReadRequest{}
	require.NoError(t, json.Unmarshal(conn.sent[0], &req))
	assert.Equal(t, model.GroupAddress("7/0/5"), req.Destination)
	assert.Empty(t, errChan)
}

func TestConnectTokenSharedWithConcurrentSync(t *testing.T) {
	svc, _, conn, _ := newTestService(t)

	payload := []byte(`{"result_code":200,"result_msg":"success","result_data":` +
		`{"service":"connect","token":"abc123","gateway":"knxd","version":"0.14"}}`)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = svc.SyncAll(context.Background())
		}
	}()
	svc.onMessage(payload, conn)
	<-done

	for _, raw := range conn.sentMessages() {
		req := model.GroupReadRequest{}
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Contains(t, []string{"", "abc123"}, req.Token)
	}
	assert.Equal(t, "abc123", svc.token)
}

func TestSubscribeToTimeout(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.heartbeatCheckInterval = 10 * time.Millisecond
	svc.heartbeatStaleAfter = 20 * time.Millisecond
	svc.handleHeartbeat()

	select {
	case err := <-svc.SubscribeToTimeout():
		assert.ErrorIs(t, err, buserr.ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("stale heartbeat never reported")
	}
}

func TestSubscribeToTimeoutSupersedesOldMonitor(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.heartbeatCheckInterval = 10 * time.Millisecond
	svc.heartbeatStaleAfter = 20 * time.Millisecond
	svc.handleHeartbeat()

	first := svc.SubscribeToTimeout()
	second := svc.SubscribeToTimeout()

	select {
	case err := <-second:
		assert.ErrorIs(t, err, buserr.ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("stale heartbeat never reported")
	}

	// the retired monitor must not feed its subscription again
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-first:
		t.Fatalf("superseded monitor delivered %v", err)
	default:
	}
}

func TestOnMessageUnparsableSemanticError(t *testing.T) {
	svc, _, conn, errChan := newTestService(t)

	// valid JSON with the wrong shape is a parse error, not a fragment
	svc.onMessage([]byte(`{"result_code":"not a number"}`), conn)

	var parseErr *buserr.CouldNotParseTelegram
	assert.True(t, errors.As(<-errChan, &parseErr))
	assert.Empty(t, svc.storedData)
}
