// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/lib/clock"
)

// WebSocketConfig configures the websocket push channel.
type WebSocketConfig struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Token is the bearer token sent in the Authorization header of
	// the upgrade request.
	Token string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock drives ping intervals and reconnect backoff. Defaults to
	// the real clock.
	Clock clock.Clock

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// PingInterval between keepalive pings. Defaults to 30s.
	PingInterval time.Duration

	// WriteTimeout bounds each frame write. Defaults to 10s.
	WriteTimeout time.Duration

	// MinBackoff and MaxBackoff bound the reconnect delay, which
	// doubles on each consecutive failure. Defaults: 1s and 30s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (cfg *WebSocketConfig) applyDefaults() {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
}

// WebSocketChannel is the production push transport. It owns one
// websocket connection at a time, reads frames from a single goroutine
// (preserving server delivery order), and reconnects with exponential
// backoff when the connection drops. Missed events are not replayed;
// consumers listen for OnConnect and refetch.
type WebSocketChannel struct {
	cfg    WebSocketConfig
	logger *slog.Logger
	clock  clock.Clock

	mu              sync.Mutex
	conn            *websocket.Conn
	connStop        chan struct{}
	connected       bool
	closed          bool
	nextID          int
	handlers        map[string]map[int]Handler
	connectHandlers map[int]func()
	pending         map[string]chan json.RawMessage

	// writeMu serializes frame writes; the websocket allows only one
	// concurrent writer.
	writeMu sync.Mutex

	done chan struct{}
}

var _ Channel = (*WebSocketChannel)(nil)

// DialWebSocket connects to the push endpoint and starts the channel.
// The first connection is made synchronously so configuration errors
// surface immediately; later drops reconnect in the background.
func DialWebSocket(ctx context.Context, cfg WebSocketConfig) (*WebSocketChannel, error) {
	cfg.applyDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("push: WebSocketConfig.URL is required")
	}
	c := &WebSocketChannel{
		cfg:             cfg,
		logger:          cfg.Logger,
		clock:           cfg.Clock,
		handlers:        make(map[string]map[int]Handler),
		connectHandlers: make(map[int]func()),
		pending:         make(map[string]chan json.RawMessage),
		done:            make(chan struct{}),
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.installConn(conn)
	go c.run(conn)
	return c, nil
}

func (c *WebSocketChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("push: dialing %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// installConn makes conn the live connection and starts its keepalive.
func (c *WebSocketChannel) installConn(conn *websocket.Conn) {
	stop := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.connStop = stop
	c.connected = true
	c.mu.Unlock()
	go c.pingLoop(conn, stop)
}

// teardownConn marks the channel disconnected and abandons pending
// acknowledgments; their waiters hit their own bounded timeouts.
func (c *WebSocketChannel) teardownConn() {
	c.mu.Lock()
	if c.connStop != nil {
		close(c.connStop)
		c.connStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.pending = make(map[string]chan json.RawMessage)
	c.mu.Unlock()
}

// run is the connection lifecycle loop: read until the connection
// fails, then reconnect with doubling backoff until Close.
func (c *WebSocketChannel) run(conn *websocket.Conn) {
	for {
		c.readLoop(conn)
		c.teardownConn()
		if c.isClosed() {
			return
		}
		c.logger.Info("push: connection lost, reconnecting")

		backoff := c.cfg.MinBackoff
		for {
			select {
			case <-c.done:
				return
			case <-c.clock.After(backoff):
			}
			next, err := c.dial(context.Background())
			if err == nil {
				conn = next
				break
			}
			c.logger.Warn("push: reconnect failed", "error", err, "backoff", backoff)
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
		}
		c.installConn(conn)
		c.fireConnect()
	}
}

// readLoop reads and dispatches frames until the connection errors.
// It is the only reader, so handlers observe server order.
func (c *WebSocketChannel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Debug("push: read failed", "error", err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("push: dropping malformed frame", "error", err)
			continue
		}
		if f.Event == ackEventName {
			c.resolveAck(f)
			continue
		}
		c.dispatch(f)
	}
}

func (c *WebSocketChannel) resolveAck(f frame) {
	c.mu.Lock()
	waiter, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("push: ack for unknown frame", "id", f.ID)
		return
	}
	waiter <- f.Payload
}

func (c *WebSocketChannel) dispatch(f frame) {
	c.mu.Lock()
	registered := make([]Handler, 0, len(c.handlers[f.Event]))
	for _, handler := range c.handlers[f.Event] {
		registered = append(registered, handler)
	}
	c.mu.Unlock()
	for _, handler := range registered {
		handler(f.Payload)
	}
}

func (c *WebSocketChannel) fireConnect() {
	c.mu.Lock()
	registered := make([]func(), 0, len(c.connectHandlers))
	for _, handler := range c.connectHandlers {
		registered = append(registered, handler)
	}
	c.mu.Unlock()
	for _, handler := range registered {
		handler()
	}
}

// pingLoop sends keepalive pings until the connection is torn down or
// a write fails.
func (c *WebSocketChannel) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-c.clock.After(c.cfg.PingInterval):
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, deadline)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// On implements Channel.
func (c *WebSocketChannel) On(name string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	if c.handlers[name] == nil {
		c.handlers[name] = make(map[int]Handler)
	}
	c.handlers[name][id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[name], id)
	}
}

// OnConnect implements Channel. Handlers fire on reconnects, not for
// the connection DialWebSocket itself established.
func (c *WebSocketChannel) OnConnect(handler func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.connectHandlers[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.connectHandlers, id)
	}
}

// Emit implements Channel.
func (c *WebSocketChannel) Emit(name string, payload any) error {
	return c.writeFrame(frame{Event: name}, payload)
}

// EmitWithAck implements Channel.
func (c *WebSocketChannel) EmitWithAck(name string, payload any) (<-chan json.RawMessage, error) {
	id := uuid.NewString()
	waiter := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = waiter
	c.mu.Unlock()

	if err := c.writeFrame(frame{Event: name, ID: id}, payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}
	return waiter, nil
}

func (c *WebSocketChannel) writeFrame(f frame, payload any) error {
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("push: encoding %s payload: %w", f.Event, err)
		}
		f.Payload = encoded
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("push: encoding frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("push: writing %s frame: %w", f.Event, err)
	}
	return nil
}

// Connected implements Channel.
func (c *WebSocketChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *WebSocketChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close implements Channel.
func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	c.teardownConn()
	return nil
}
