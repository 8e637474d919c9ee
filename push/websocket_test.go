// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/lib/testutil"
)

// testServer upgrades one connection at a time and hands it to serve.
func testServer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serve(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketDeliversEventsInOrder(t *testing.T) {
	frames := []frame{
		{Event: "message.new", Payload: json.RawMessage(`{"n":1}`)},
		{Event: "message.new", Payload: json.RawMessage(`{"n":2}`)},
		{Event: "typing.started", Payload: json.RawMessage(`{"n":3}`)},
	}
	release := make(chan struct{})
	server := testServer(t, func(conn *websocket.Conn) {
		<-release
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
	})

	channel, err := DialWebSocket(context.Background(), WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer channel.Close()

	received := make(chan string, 8)
	channel.On("message.new", func(payload json.RawMessage) {
		received <- "message.new:" + string(payload)
	})
	channel.On("typing.started", func(payload json.RawMessage) {
		received <- "typing.started:" + string(payload)
	})
	close(release)

	want := []string{
		`message.new:{"n":1}`,
		`message.new:{"n":2}`,
		`typing.started:{"n":3}`,
	}
	for _, expected := range want {
		got := testutil.RequireReceive(t, received, 5*time.Second, "waiting for %s", expected)
		if got != expected {
			t.Errorf("got %q, want %q", got, expected)
		}
	}
}

func TestWebSocketAuthorizationHeader(t *testing.T) {
	headerValue := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerValue <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(server.Close)

	channel, err := DialWebSocket(context.Background(), WebSocketConfig{
		URL:   wsURL(server),
		Token: "secret-token",
	})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer channel.Close()

	got := testutil.RequireReceive(t, headerValue, 5*time.Second, "waiting for upgrade request")
	if got != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", got)
	}
}

func TestWebSocketEmitWithAck(t *testing.T) {
	server := testServer(t, func(conn *websocket.Conn) {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Errorf("read: %v", err)
			return
		}
		if f.Event != "message.send" || f.ID == "" {
			t.Errorf("frame = %+v, want message.send with correlation ID", f)
		}
		ack := frame{Event: "ack", ID: f.ID, Payload: json.RawMessage(`{"messageId":"m1"}`)}
		if err := conn.WriteJSON(ack); err != nil {
			t.Errorf("write ack: %v", err)
		}
	})

	channel, err := DialWebSocket(context.Background(), WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer channel.Close()

	waiter, err := channel.EmitWithAck("message.send", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatalf("EmitWithAck: %v", err)
	}
	payload := testutil.RequireReceive(t, waiter, 5*time.Second, "waiting for ack")
	if string(payload) != `{"messageId":"m1"}` {
		t.Errorf("ack payload = %s", payload)
	}
}

func TestWebSocketEmitAfterClose(t *testing.T) {
	server := testServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	channel, err := DialWebSocket(context.Background(), WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := channel.Emit("typing.started", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit after close = %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := channel.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestWebSocketOffUnsubscribes(t *testing.T) {
	release := make(chan struct{})
	server := testServer(t, func(conn *websocket.Conn) {
		<-release
		conn.WriteJSON(frame{Event: "message.new", Payload: json.RawMessage(`{}`)})
		conn.WriteJSON(frame{Event: "message.update", Payload: json.RawMessage(`{}`)})
	})

	channel, err := DialWebSocket(context.Background(), WebSocketConfig{URL: wsURL(server)})
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}
	defer channel.Close()

	received := make(chan string, 2)
	off := channel.On("message.new", func(json.RawMessage) { received <- "new" })
	channel.On("message.update", func(json.RawMessage) { received <- "update" })
	off()
	close(release)

	got := testutil.RequireReceive(t, received, 5*time.Second, "waiting for update event")
	if got != "update" {
		t.Errorf("got %q: unsubscribed handler should not fire", got)
	}
}

func TestWebSocketDialFailure(t *testing.T) {
	if _, err := DialWebSocket(context.Background(), WebSocketConfig{URL: "ws://127.0.0.1:1/push"}); err == nil {
		t.Error("expected dial error")
	}
	if _, err := DialWebSocket(context.Background(), WebSocketConfig{}); err == nil {
		t.Error("expected error for missing URL")
	}
}
