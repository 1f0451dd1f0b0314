package knx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/config"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/device"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
	ws "github.com/mbeckers/knx-weather-integration/pkg/sockets"
)

// maxStoredDataSize bounds the reassembly buffer for fragmented gateway
// payloads.
const maxStoredDataSize = 1 * 1024 * 1024

type service struct {
	cfg      *config.BusConfig
	registry *device.Registry
	errChan  chan error
	logger   *zap.Logger

	mu             sync.Mutex
	conn           ws.Connection
	token          string
	storedData     []byte
	connectionTime time.Time
	timeoutGen     uint64

	heartbeatCheckInterval time.Duration
	heartbeatStaleAfter    time.Duration
}

var _ device.GroupWriter = (*service)(nil)

func New(cfg *config.BusConfig, registry *device.Registry, errChan chan error) *service {
	return &service{
		cfg:                    cfg,
		registry:               registry,
		errChan:                errChan,
		logger:                 zap.L(), // returns the global logger.
		storedData:             []byte{},
		heartbeatCheckInterval: time.Second * 30,
		heartbeatStaleAfter:    time.Minute * 2,
	}
}

func (s *service) sendIfErr(err error) {
	if err != nil {
		s.errChan <- err
	}
}

func (s *service) onconnect(c ws.Connection) {
	s.setConn(c)
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	s.logger.Debug("onconnect ws received")
	data, err := json.Marshal(model.ConnectRequest{
		Request: model.Request{
			Service: model.Connect.String(),
			Token:   token,
		},
		ClientName: s.cfg.ClientName,
	})
	s.sendIfErr(err)
	s.logger.Debug("sending msg", zap.ByteString("request", data), zap.String("service", model.Connect.String()))
	s.sendIfErr(c.Send(ws.Msg{Body: data}))
}

// unmarshal returns true when data is an incomplete JSON fragment.
func (s *service) unmarshal(data []byte) (*model.GenericResult, bool) {
	result := model.GenericResult{}

	if err := json.Unmarshal(data, &result); err != nil {
		var serr *json.SyntaxError
		if errors.As(err, &serr) {
			return nil, true
		}
		s.sendIfErr(buserr.NewCouldNotParseTelegram(err.Error(), ""))
		return nil, false
	}

	return &result, false
}

func (s *service) onMessage(data []byte, c ws.Connection) {
	s.setConn(c)
	result, isSyntaxErr := s.unmarshal(data)
	if isSyntaxErr {
		if len(s.storedData)+len(data) > maxStoredDataSize {
			s.logger.Warn("reassembly buffer overflow, dropping buffered fragments",
				zap.Int("stored_size", len(s.storedData)), zap.Int("incoming_size", len(data)))
			s.storedData = []byte{}
		}
		s.storedData = append(s.storedData, data...)
	}
	if result == nil {
		if result, isSyntaxErr = s.unmarshal(s.storedData); isSyntaxErr || result == nil {
			return
		}
		data = s.storedData
		s.storedData = []byte{}
	}

	s.logger.Debug("received message", zap.String("result", result.ResultMessage), zap.String("service", result.ResultData.Service.String()))
	switch result.ResultMessage {
	case "success":
	case "session timeout":
		s.logger.Info("time since last connection", zap.Duration("timeout_duration", time.Since(s.connectionTime)))
		s.sendIfErr(s.reconnect())
		return
	}

	switch result.ResultData.Service {
	case model.Connect:
		s.handleConnectMessage(data)
	case model.Heartbeat:
		s.handleHeartbeat()
	case model.Telegram:
		s.handleTelegramMessage(data)
	case model.GroupWrite:
		s.handleGroupWriteResponse(data)
	case model.GroupRead:
		// reads are answered with telegrams, nothing to do here
	}
}

func (s *service) handleConnectMessage(data []byte) {
	res := model.ParsedResult[model.ConnectResponse]{}
	err := json.Unmarshal(data, &res)
	s.sendIfErr(err)
	s.mu.Lock()
	s.token = res.ResultData.Token
	s.mu.Unlock()
	s.logger.Info("connected to gateway",
		zap.String("gateway", res.ResultData.Gateway),
		zap.String("version", res.ResultData.Version))

	// prime the state of every sync_state device right after connecting
	if err := s.SyncAll(context.Background()); err != nil {
		s.sendIfErr(err)
	}
}

func (s *service) handleHeartbeat() {
	s.mu.Lock()
	s.connectionTime = time.Now()
	s.mu.Unlock()
}

func (s *service) handleGroupWriteResponse(data []byte) {
	res := model.ParsedResult[model.GroupWriteResponse]{}
	err := json.Unmarshal(data, &res)
	s.sendIfErr(err)
	if !res.ResultData.Accepted {
		s.sendIfErr(buserr.NewCommunicationError("group write rejected for "+res.ResultData.Destination.String(), nil))
	}
}

func (s *service) onError(err error) {
	if errors.Is(err, io.EOF) {
		err = s.reconnect()
	}
	s.sendIfErr(err)
}

func (s *service) setConn(c ws.Connection) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

func (s *service) reconnect() error {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	var u url.URL
	if s.cfg.Ssl {
		u = url.URL{Scheme: "wss", Host: s.cfg.Host + ":443", Path: "/ws/knx"}
	} else {
		u = url.URL{Scheme: "ws", Host: s.cfg.Host + ":8082", Path: "/ws/knx"}
	}

	s.logger.Debug("connecting to", zap.String("url", u.String()))

	s.token = "" // clear it out, the gateway hands us a fresh one.

	conn := ws.New(
		ws.OnConnected(s.onconnect),
		ws.OnMessage(s.onMessage),
		ws.OnError(s.onError),
		ws.InsecureSkipVerify(),
		ws.WithPingIntervalSec(4),
		ws.WithPingMsg([]byte("ping")),
	)
	s.conn = conn
	s.mu.Unlock()

	if err := conn.Dial(context.Background(), u.String(), ""); err != nil {
		s.logger.Error("failed to connect to", zap.String("url", u.String()), zap.Error(err))
		return buserr.NewCommunicationError("gateway dial failed", err)
	}
	s.logger.Debug("successfully connected to", zap.String("url", u.String()))
	s.mu.Lock()
	s.connectionTime = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *service) Connect(ctx context.Context) error {
	return s.reconnect()
}

func (s *service) Reconnect() error {
	return s.reconnect()
}

// SubscribeToTimeout delivers buserr.ErrTimeout when the gateway stops
// answering heartbeats. Each call starts a fresh monitor and retires the
// previous one, so a stale monitor can never feed an old subscription.
func (s *service) SubscribeToTimeout() chan error {
	ch := make(chan error, 1)
	s.mu.Lock()
	s.timeoutGen++
	gen := s.timeoutGen
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.heartbeatCheckInterval)
		defer ticker.Stop()
		for range ticker.C {
			s.mu.Lock()
			superseded := s.timeoutGen != gen
			stale := !s.connectionTime.IsZero() && time.Since(s.connectionTime) > s.heartbeatStaleAfter
			s.mu.Unlock()
			if superseded {
				return
			}
			if stale {
				ch <- buserr.ErrTimeout
				return
			}
		}
	}()
	return ch
}
