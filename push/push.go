// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package push provides the real-time event channel between the client
// and the server.
//
// The wire unit is a frame: an event name, an optional correlation ID,
// and a JSON payload. The server pushes event frames; the client emits
// frames and may request acknowledgment, which the server answers with
// an "ack" frame carrying the same correlation ID.
//
// Two implementations exist: the gorilla/websocket transport used in
// production (WebSocketChannel) and an in-memory double for tests
// (MemoryChannel). Handlers for one connection are always invoked from
// a single goroutine, so events arrive at the cache in the order the
// server sent them.
package push

import (
	"encoding/json"
	"errors"
)

// ErrNotConnected is returned by Emit and EmitWithAck when the channel
// has no live connection. Distinct from an acknowledgment timeout so
// callers can surface a different failure to the user.
var ErrNotConnected = errors.New("push: not connected")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("push: channel closed")

// ackEventName is the reserved frame name for acknowledgments.
const ackEventName = "ack"

// frame is the wire unit.
type frame struct {
	// Event is the event name ("message.new", ...). The reserved name
	// "ack" marks an acknowledgment of a previously emitted frame.
	Event string `json:"event"`
	// ID correlates an emitted frame with its acknowledgment. Empty
	// when no acknowledgment was requested.
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler receives one pushed event.
type Handler func(payload json.RawMessage)

// Channel is the push transport surface the messaging layer consumes.
type Channel interface {
	// On registers a handler for the named event. The returned
	// function removes the registration. Handlers for one channel run
	// sequentially, in server delivery order.
	On(name string, handler Handler) (off func())

	// OnConnect registers a handler invoked after every successful
	// connection, including reconnects. The returned function removes
	// the registration.
	OnConnect(handler func()) (off func())

	// Emit sends an event without requesting acknowledgment. Returns
	// ErrNotConnected when offline.
	Emit(name string, payload any) error

	// EmitWithAck sends an event and returns a channel that receives
	// the server's acknowledgment payload. The ack channel never
	// closes; callers bound their own wait. Returns ErrNotConnected
	// when offline.
	EmitWithAck(name string, payload any) (<-chan json.RawMessage, error)

	// Connected reports whether a live connection exists.
	Connected() bool

	// Close tears the channel down. Idempotent.
	Close() error
}
