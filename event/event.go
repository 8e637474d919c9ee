// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the real-time events pushed by the server and
// their wire codec.
//
// Every event type carries enough addressing to route it to one
// conversation in the local cache: either the full message (which names
// its owner), or an explicit channel/group reference. Events are a
// closed set; Decode rejects names it does not know so the dispatch
// layer can log and drop them without guessing at payload shapes.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/message"
)

// Wire names of the push events.
const (
	TypeNewMessage       = "message.new"
	TypeUpdateMessage    = "message.update"
	TypeDeleteMessage    = "message.delete"
	TypeReactionAdded    = "reaction.added"
	TypeReactionRemoved  = "reaction.removed"
	TypeMessagePinned    = "message.pinned"
	TypeMessageUnpinned  = "message.unpinned"
	TypeThreadReplyCount = "thread.replyCount"
	TypeReadReceipt      = "receipt.updated"
	TypeTypingStarted    = "typing.started"
)

// ErrUnknownEvent is returned by Decode for an event name outside the
// closed set. The dispatch layer drops such frames after logging.
var ErrUnknownEvent = errors.New("event: unknown event name")

// Event is one decoded push event. The set of implementations is
// closed: cache reducers type-switch over it exhaustively.
type Event interface {
	// Name returns the wire name of the event.
	Name() string

	isEvent()
}

// Scope addresses a conversation by its owning channel or group.
// Exactly one field is set on the wire. Embedded by every event that
// does not carry a full message.
type Scope struct {
	ChannelID *ref.ChannelID `json:"channelId,omitempty"`
	GroupID   *ref.GroupID   `json:"directMessageGroupId,omitempty"`
}

// ChannelScope returns a Scope addressing a channel.
func ChannelScope(id ref.ChannelID) Scope {
	return Scope{ChannelID: &id}
}

// GroupScope returns a Scope addressing a direct-message group.
func GroupScope(id ref.GroupID) Scope {
	return Scope{GroupID: &id}
}

// Conversation folds the scope into a conversation key. ok is false
// when neither field is set.
func (s Scope) Conversation() (ref.Conversation, bool) {
	switch {
	case s.ChannelID != nil && !s.ChannelID.IsZero():
		return ref.ChannelConversation(*s.ChannelID), true
	case s.GroupID != nil && !s.GroupID.IsZero():
		return ref.GroupConversation(*s.GroupID), true
	default:
		return ref.Conversation{}, false
	}
}

// NewMessage announces a message created in a conversation.
type NewMessage struct {
	Message message.Message `json:"message"`
}

func (NewMessage) Name() string { return TypeNewMessage }
func (NewMessage) isEvent()     {}

// UpdateMessage carries the full updated message after an edit,
// soft-delete, or any other server-side mutation. The payload replaces
// the cached copy wholesale.
type UpdateMessage struct {
	Message message.Message `json:"message"`
}

func (UpdateMessage) Name() string { return TypeUpdateMessage }
func (UpdateMessage) isEvent()     {}

// DeleteMessage announces a hard delete. The message is removed from
// the cache entirely, unlike a soft delete which arrives as an
// UpdateMessage with DeletedAt set.
type DeleteMessage struct {
	Scope
	MessageID ref.MessageID `json:"messageId"`
}

func (DeleteMessage) Name() string { return TypeDeleteMessage }
func (DeleteMessage) isEvent()     {}

// ReactionAdded carries the server's post-add user set for one emoji
// on one message. The payload is the full per-emoji set, not a delta,
// so applying it twice converges.
type ReactionAdded struct {
	Scope
	MessageID ref.MessageID    `json:"messageId"`
	Reaction  message.Reaction `json:"reaction"`
}

func (ReactionAdded) Name() string { return TypeReactionAdded }
func (ReactionAdded) isEvent()     {}

// ReactionRemoved carries the full reaction snapshot of the message
// after a removal. Removal cannot be expressed as a per-emoji merge,
// so the server sends the complete state.
type ReactionRemoved struct {
	Scope
	MessageID ref.MessageID      `json:"messageId"`
	Reactions []message.Reaction `json:"reactions"`
}

func (ReactionRemoved) Name() string { return TypeReactionRemoved }
func (ReactionRemoved) isEvent()     {}

// MessagePinned announces a message pinned in a channel. Pins are
// channel-scoped; direct-message groups have none.
type MessagePinned struct {
	MessageID ref.MessageID `json:"messageId"`
	ChannelID ref.ChannelID `json:"channelId"`
	PinnedBy  *ref.UserID   `json:"pinnedBy,omitempty"`
	PinnedAt  *time.Time    `json:"pinnedAt,omitempty"`
}

func (MessagePinned) Name() string { return TypeMessagePinned }
func (MessagePinned) isEvent()     {}

// MessageUnpinned announces a pin removal.
type MessageUnpinned struct {
	MessageID ref.MessageID `json:"messageId"`
	ChannelID ref.ChannelID `json:"channelId"`
}

func (MessageUnpinned) Name() string { return TypeMessageUnpinned }
func (MessageUnpinned) isEvent()     {}

// ThreadReplyCountUpdated refreshes the reply metadata on a thread
// root after a reply is posted or removed.
type ThreadReplyCountUpdated struct {
	Scope
	ParentMessageID ref.MessageID `json:"parentMessageId"`
	ReplyCount      int           `json:"replyCount"`
	LastReplyAt     *time.Time    `json:"lastReplyAt,omitempty"`
}

func (ThreadReplyCountUpdated) Name() string { return TypeThreadReplyCount }
func (ThreadReplyCountUpdated) isEvent()     {}

// ReadReceiptUpdated moves the local user's read marker for one
// conversation, typically because another device caught up.
type ReadReceiptUpdated struct {
	Scope
	LastReadMessageID ref.MessageID `json:"lastReadMessageId"`
}

func (ReadReceiptUpdated) Name() string { return TypeReadReceipt }
func (ReadReceiptUpdated) isEvent()     {}

// TypingStarted announces that a user began typing in a conversation.
// There is no corresponding stop event; indicators expire locally.
type TypingStarted struct {
	Scope
	UserID ref.UserID `json:"userId"`
}

func (TypingStarted) Name() string { return TypeTypingStarted }
func (TypingStarted) isEvent()     {}

// Decode parses the payload of a named push event into its concrete
// type. Unknown names return ErrUnknownEvent.
func Decode(name string, payload json.RawMessage) (Event, error) {
	var (
		decoded Event
		err     error
	)
	unmarshal := func(target Event) Event {
		err = json.Unmarshal(payload, target)
		return target
	}
	switch name {
	case TypeNewMessage:
		decoded = unmarshal(&NewMessage{})
	case TypeUpdateMessage:
		decoded = unmarshal(&UpdateMessage{})
	case TypeDeleteMessage:
		decoded = unmarshal(&DeleteMessage{})
	case TypeReactionAdded:
		decoded = unmarshal(&ReactionAdded{})
	case TypeReactionRemoved:
		decoded = unmarshal(&ReactionRemoved{})
	case TypeMessagePinned:
		decoded = unmarshal(&MessagePinned{})
	case TypeMessageUnpinned:
		decoded = unmarshal(&MessageUnpinned{})
	case TypeThreadReplyCount:
		decoded = unmarshal(&ThreadReplyCountUpdated{})
	case TypeReadReceipt:
		decoded = unmarshal(&ReadReceiptUpdated{})
	case TypeTypingStarted:
		decoded = unmarshal(&TypingStarted{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if err != nil {
		return nil, fmt.Errorf("event: decoding %s: %w", name, err)
	}
	return decoded, nil
}

// Encode serializes an event to its wire name and JSON payload.
func Encode(e Event) (string, json.RawMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("event: encoding %s: %w", e.Name(), err)
	}
	return e.Name(), payload, nil
}
