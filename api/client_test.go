// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parley-chat/parley/lib/ref"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{BaseURL: server.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("NewClient without BaseURL should fail")
	}
}

func TestConversationMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/conversations/channel/c1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("token"); got != "tok-1" {
			t.Errorf("token = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "25" {
			t.Errorf("limit = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{
					"id":        "m2",
					"authorId":  "u1",
					"channelId": "c1",
					"spans":     []map[string]any{{"type": "PLAINTEXT", "text": "newest"}},
					"sentAt":    "2026-08-28T10:00:00Z",
				},
				{
					"id":        "m1",
					"authorId":  "u2",
					"channelId": "c1",
					"spans":     []map[string]any{{"type": "PLAINTEXT", "text": "older"}},
					"sentAt":    "2026-08-28T09:00:00Z",
				},
			},
			"continuationToken": "tok-2",
		})
	})

	channelID, _ := ref.ParseChannelID("c1")
	page, err := client.ConversationMessages(context.Background(),
		ref.ChannelConversation(channelID), PageOptions{Token: "tok-1", Limit: 25})
	if err != nil {
		t.Fatalf("ConversationMessages: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(page.Messages))
	}
	if page.Messages[0].ID.String() != "m2" || page.Messages[0].Text() != "newest" {
		t.Errorf("first message = %+v", page.Messages[0])
	}
	if page.ContinuationToken != "tok-2" {
		t.Errorf("token = %q", page.ContinuationToken)
	}
}

func TestConversationMessagesRequiresConversation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.ConversationMessages(context.Background(), ref.Conversation{}, PageOptions{}); err == nil {
		t.Error("zero conversation should fail before the request")
	}
}

func TestDirectory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/directory/members":
			json.NewEncoder(w).Encode(map[string]any{
				"members": []map[string]any{{"id": "u1", "username": "alice"}},
			})
		case "/v1/directory/channels":
			json.NewEncoder(w).Encode(map[string]any{
				"channels": []map[string]any{{"id": "c1", "name": "dev"}},
			})
		case "/v1/directory/aliases":
			json.NewEncoder(w).Encode(map[string]any{
				"aliases": []map[string]any{
					{"id": "a1", "name": "devs", "memberIds": []string{"u1"}},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	directory, err := client.Directory(context.Background())
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if len(directory.Users) != 1 || directory.Users[0].Username != "alice" {
		t.Errorf("users = %+v", directory.Users)
	}
	if len(directory.Channels) != 1 || directory.Channels[0].Name != "dev" {
		t.Errorf("channels = %+v", directory.Channels)
	}
	if len(directory.Aliases) != 1 || len(directory.Aliases[0].MemberIDs) != 1 {
		t.Errorf("aliases = %+v", directory.Aliases)
	}
}

func TestMarkRead(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/conversations/group/g1/read" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var request struct {
			LastReadMessageID string `json:"lastReadMessageId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode: %v", err)
		}
		if request.LastReadMessageID != "m9" {
			t.Errorf("lastReadMessageId = %q", request.LastReadMessageID)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	groupID, _ := ref.ParseGroupID("g1")
	lastRead, _ := ref.ParseMessageID("m9")
	if err := client.MarkRead(context.Background(), ref.GroupConversation(groupID), lastRead); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "NOT_FOUND",
			"message": "no such conversation",
		})
	})

	channelID, _ := ref.ParseChannelID("missing")
	_, err := client.ConversationMessages(context.Background(),
		ref.ChannelConversation(channelID), PageOptions{})
	if !IsAPIError(err, ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND APIError", err)
	}
}

func TestNonJSONErrorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	channelID, _ := ref.ParseChannelID("c1")
	_, err := client.ConversationMessages(context.Background(),
		ref.ChannelConversation(channelID), PageOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("non-JSON body should not produce an APIError: %v", apiErr)
	}
}
