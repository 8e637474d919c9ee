// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/message"
	"github.com/parley-chat/parley/span"
)

func TestDecodeNewMessage(t *testing.T) {
	payload := []byte(`{
		"message": {
			"id": "m1",
			"authorId": "u1",
			"channelId": "c1",
			"spans": [{"type": "PLAINTEXT", "text": "hello"}],
			"sentAt": "2026-08-28T10:00:00Z"
		}
	}`)
	decoded, err := Decode(TypeNewMessage, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	newMsg, ok := decoded.(*NewMessage)
	if !ok {
		t.Fatalf("decoded type = %T, want *NewMessage", decoded)
	}
	if newMsg.Message.ID.String() != "m1" {
		t.Errorf("id = %s", newMsg.Message.ID)
	}
	conversation, ok := newMsg.Message.Conversation()
	if !ok || conversation.String() != "channel/c1" {
		t.Errorf("conversation = %s, ok = %v", conversation, ok)
	}
	if newMsg.Message.Text() != "hello" {
		t.Errorf("text = %q", newMsg.Message.Text())
	}
}

func TestDecodeUnknownName(t *testing.T) {
	_, err := Decode("message.exploded", []byte(`{}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("err = %v, want ErrUnknownEvent", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := Decode(TypeNewMessage, []byte(`{"message": 42}`)); err == nil {
		t.Error("expected decode error for malformed payload")
	}
}

func TestScopeConversation(t *testing.T) {
	channelID, _ := ref.ParseChannelID("c1")
	groupID, _ := ref.ParseGroupID("g1")

	conv, ok := ChannelScope(channelID).Conversation()
	if !ok || conv.String() != "channel/c1" {
		t.Errorf("channel scope = %s, ok = %v", conv, ok)
	}
	conv, ok = GroupScope(groupID).Conversation()
	if !ok || conv.String() != "group/g1" {
		t.Errorf("group scope = %s, ok = %v", conv, ok)
	}
	if _, ok := (Scope{}).Conversation(); ok {
		t.Error("empty scope should not resolve")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	channelID, _ := ref.ParseChannelID("c1")
	groupID, _ := ref.ParseGroupID("g1")
	messageID, _ := ref.ParseMessageID("m1")
	userID, _ := ref.ParseUserID("u1")
	replyAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	events := []Event{
		&DeleteMessage{Scope: ChannelScope(channelID), MessageID: messageID},
		&ReactionAdded{
			Scope:     GroupScope(groupID),
			MessageID: messageID,
			Reaction:  message.Reaction{Emoji: "👍", UserIDs: []ref.UserID{userID}},
		},
		&ReactionRemoved{Scope: ChannelScope(channelID), MessageID: messageID},
		&MessagePinned{MessageID: messageID, ChannelID: channelID, PinnedBy: &userID},
		&MessageUnpinned{MessageID: messageID, ChannelID: channelID},
		&ThreadReplyCountUpdated{
			Scope:           ChannelScope(channelID),
			ParentMessageID: messageID,
			ReplyCount:      3,
			LastReplyAt:     &replyAt,
		},
		&ReadReceiptUpdated{Scope: GroupScope(groupID), LastReadMessageID: messageID},
		&TypingStarted{Scope: ChannelScope(channelID), UserID: userID},
	}
	for _, original := range events {
		name, payload, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode(%s): %v", original.Name(), err)
		}
		decoded, err := Decode(name, payload)
		if err != nil {
			t.Fatalf("Decode(%s): %v", name, err)
		}
		if decoded.Name() != original.Name() {
			t.Errorf("round trip changed name: %s -> %s", original.Name(), decoded.Name())
		}
	}
}

func TestDecodeTypingStarted(t *testing.T) {
	payload := []byte(`{"directMessageGroupId": "g1", "userId": "u2"}`)
	decoded, err := Decode(TypeTypingStarted, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	typing := decoded.(*TypingStarted)
	conv, ok := typing.Conversation()
	if !ok || conv.Kind() != ref.KindGroup {
		t.Errorf("conversation = %s, ok = %v", conv, ok)
	}
	if typing.UserID.String() != "u2" {
		t.Errorf("userId = %s", typing.UserID)
	}
}

func TestNewMessagePayloadShape(t *testing.T) {
	channelID, _ := ref.ParseChannelID("c1")
	messageID, _ := ref.ParseMessageID("m1")
	userID, _ := ref.ParseUserID("u1")
	msg := message.Message{
		ID:        messageID,
		AuthorID:  userID,
		ChannelID: &channelID,
		Spans:     []span.Span{span.NewPlaintext("hi")},
		SentAt:    time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}
	_, payload, err := Encode(&NewMessage{Message: msg})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := wire["message"]; !ok {
		t.Errorf("payload missing message key: %s", payload)
	}
}
