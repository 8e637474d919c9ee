// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryChannel is an in-process Channel for tests. The test plays the
// server: Deliver injects pushed events, SetConnected flips the link
// state (firing connect handlers on reconnect), and Acknowledge
// answers an emitted frame's ack request.
type MemoryChannel struct {
	mu              sync.Mutex
	connected       bool
	closed          bool
	nextID          int
	handlers        map[string]map[int]Handler
	connectHandlers map[int]func()
	pending         map[string]chan json.RawMessage
	pendingOrder    []string
	emitted         []EmittedFrame
}

// EmittedFrame records one frame the client sent.
type EmittedFrame struct {
	Event   string
	Payload json.RawMessage
	// AckID is non-empty when the client requested acknowledgment.
	AckID string
}

var _ Channel = (*MemoryChannel)(nil)

// NewMemoryChannel returns a connected in-memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{
		connected:       true,
		handlers:        make(map[string]map[int]Handler),
		connectHandlers: make(map[int]func()),
		pending:         make(map[string]chan json.RawMessage),
	}
}

// On implements Channel.
func (c *MemoryChannel) On(name string, handler Handler) func() {
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

// OnConnect implements Channel.
func (c *MemoryChannel) OnConnect(handler func()) func() {
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
func (c *MemoryChannel) Emit(name string, payload any) error {
	_, err := c.record(name, payload, false)
	return err
}

// EmitWithAck implements Channel.
func (c *MemoryChannel) EmitWithAck(name string, payload any) (<-chan json.RawMessage, error) {
	waiter, err := c.record(name, payload, true)
	if err != nil {
		return nil, err
	}
	return waiter, nil
}

func (c *MemoryChannel) record(name string, payload any, wantAck bool) (chan json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("push: encoding %s payload: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if !c.connected {
		return nil, ErrNotConnected
	}
	emitted := EmittedFrame{Event: name, Payload: encoded}
	var waiter chan json.RawMessage
	if wantAck {
		emitted.AckID = fmt.Sprintf("ack-%d", len(c.emitted))
		waiter = make(chan json.RawMessage, 1)
		c.pending[emitted.AckID] = waiter
		c.pendingOrder = append(c.pendingOrder, emitted.AckID)
	}
	c.emitted = append(c.emitted, emitted)
	return waiter, nil
}

// Connected implements Channel.
func (c *MemoryChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close implements Channel.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

// Deliver pushes an event to registered handlers, as the server would.
func (c *MemoryChannel) Deliver(name string, payload json.RawMessage) {
	c.mu.Lock()
	registered := make([]Handler, 0, len(c.handlers[name]))
	for _, handler := range c.handlers[name] {
		registered = append(registered, handler)
	}
	c.mu.Unlock()
	for _, handler := range registered {
		handler(payload)
	}
}

// SetConnected flips the link state. A false-to-true transition fires
// connect handlers, mirroring the websocket reconnect path.
func (c *MemoryChannel) SetConnected(connected bool) {
	c.mu.Lock()
	reconnected := connected && !c.connected
	c.connected = connected
	registered := make([]func(), 0, len(c.connectHandlers))
	if reconnected {
		for _, handler := range c.connectHandlers {
			registered = append(registered, handler)
		}
	}
	c.mu.Unlock()
	for _, handler := range registered {
		handler()
	}
}

// Acknowledge answers the oldest unacknowledged frame with payload.
// Returns false when nothing awaits acknowledgment.
func (c *MemoryChannel) Acknowledge(payload json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pendingOrder) > 0 {
		id := c.pendingOrder[0]
		c.pendingOrder = c.pendingOrder[1:]
		waiter, ok := c.pending[id]
		if !ok {
			continue
		}
		delete(c.pending, id)
		waiter <- payload
		return true
	}
	return false
}

// Emitted returns a copy of every frame the client sent.
func (c *MemoryChannel) Emitted() []EmittedFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EmittedFrame(nil), c.emitted...)
}
