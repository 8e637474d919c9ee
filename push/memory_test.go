// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/parley-chat/parley/lib/testutil"
)

func TestMemoryChannelDeliver(t *testing.T) {
	channel := NewMemoryChannel()
	received := make(chan string, 1)
	channel.On("message.new", func(payload json.RawMessage) {
		received <- string(payload)
	})

	channel.Deliver("message.new", json.RawMessage(`{"n":1}`))
	if got := testutil.RequireReceive(t, received, time.Second, "waiting for event"); got != `{"n":1}` {
		t.Errorf("payload = %s", got)
	}
}

func TestMemoryChannelDisconnected(t *testing.T) {
	channel := NewMemoryChannel()
	channel.SetConnected(false)
	if err := channel.Emit("typing.started", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit = %v, want ErrNotConnected", err)
	}
	if _, err := channel.EmitWithAck("message.send", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("EmitWithAck = %v, want ErrNotConnected", err)
	}
}

func TestMemoryChannelReconnectFiresHandlers(t *testing.T) {
	channel := NewMemoryChannel()
	fired := make(chan struct{}, 1)
	channel.OnConnect(func() { fired <- struct{}{} })

	// Already connected: no fire on a redundant SetConnected(true).
	channel.SetConnected(true)
	select {
	case <-fired:
		t.Fatal("connect handler fired without a reconnect")
	default:
	}

	channel.SetConnected(false)
	channel.SetConnected(true)
	testutil.RequireReceive(t, fired, time.Second, "waiting for connect handler")
}

func TestMemoryChannelAcknowledge(t *testing.T) {
	channel := NewMemoryChannel()
	waiter, err := channel.EmitWithAck("message.send", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatalf("EmitWithAck: %v", err)
	}
	if !channel.Acknowledge(json.RawMessage(`{"messageId":"m1"}`)) {
		t.Fatal("Acknowledge found nothing pending")
	}
	payload := testutil.RequireReceive(t, waiter, time.Second, "waiting for ack")
	if string(payload) != `{"messageId":"m1"}` {
		t.Errorf("ack payload = %s", payload)
	}

	emitted := channel.Emitted()
	if len(emitted) != 1 || emitted[0].Event != "message.send" || emitted[0].AckID == "" {
		t.Errorf("emitted = %+v", emitted)
	}
	if channel.Acknowledge(nil) {
		t.Error("nothing should remain pending")
	}
}
