package sockets

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

type Connection interface {
	Dial(ctx context.Context, url, subprotocol string) error
	Send(msg Msg) error
	IsConnected() bool
	io.Closer
}

type Conn struct {
	ws               *websocket.Conn
	sslSkipVerify    bool
	closed           bool
	pingIntervalSecs int
	onError          func(err error)
	onMessage        func([]byte, Connection)
	onConnected      func(Connection)
	pingMsg          []byte
}

func New(opts ...func(*Conn)) Connection {
	c := &Conn{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Msg is the message structure.
type Msg struct {
	Body []byte
}

// Close closes the connection.
func (c *Conn) Close() error {
	if c.ws == nil {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

func (c *Conn) IsConnected() bool {
	return c.ws != nil && !c.closed
}

func (c *Conn) Send(msg Msg) error {
	if c.closed || c.ws == nil {
		return errors.New("closed connection")
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, msg.Body); err != nil {
		_ = c.Close()
		if c.onError != nil {
			c.onError(err)
		}
		return err
	}
	return nil
}

func (c *Conn) Dial(ctx context.Context, url, subProtocol string) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.sslSkipVerify,
		},
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	c.ws = conn
	c.closed = false

	if c.onConnected != nil {
		go c.onConnected(c)
	}
	go func() {
		for {
			_, msg, err := c.ws.ReadMessage()
			if err != nil {
				if c.onError != nil {
					c.onError(err)
				}
				return
			}
			c.onMsg(msg)
		}
	}()
	c.setupPing()
	return nil
}

func (c *Conn) onMsg(msg []byte) {
	// Fire OnMessage every time.
	if c.onMessage != nil {
		go c.onMessage(msg, c)
	}
}

func (c *Conn) setupPing() {
	if c.pingIntervalSecs > 0 && len(c.pingMsg) > 0 {
		ticker := time.NewTicker(time.Second * time.Duration(c.pingIntervalSecs))
		go func() {
			defer ticker.Stop()
			for {
				<-ticker.C // wait for tick
				if c.Send(Msg{c.pingMsg}) != nil {
					return
				}
			}
		}()
	}
}
