// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// ConversationKind distinguishes the two conversation types.
type ConversationKind string

const (
	// KindChannel is a named channel.
	KindChannel ConversationKind = "channel"
	// KindGroup is a direct-message group.
	KindGroup ConversationKind = "group"
)

// Conversation references either a channel or a direct-message group.
// Every message belongs to exactly one conversation; the two cases are
// mutually exclusive. Conversation is the partition key for the
// message cache and for routing real-time events.
//
// The canonical serialized form is "channel/<id>" or "group/<id>".
type Conversation struct {
	kind ConversationKind
	id   string
}

// ChannelConversation constructs a Conversation referencing a channel.
func ChannelConversation(channelID ChannelID) Conversation {
	return Conversation{kind: KindChannel, id: channelID.id}
}

// GroupConversation constructs a Conversation referencing a
// direct-message group.
func GroupConversation(groupID GroupID) Conversation {
	return Conversation{kind: KindGroup, id: groupID.id}
}

// ParseConversation parses the canonical "kind/id" form.
func ParseConversation(raw string) (Conversation, error) {
	kind, id, ok := strings.Cut(raw, "/")
	if !ok || id == "" {
		return Conversation{}, fmt.Errorf("invalid conversation ref %q: want kind/id", raw)
	}
	switch ConversationKind(kind) {
	case KindChannel, KindGroup:
		return Conversation{kind: ConversationKind(kind), id: id}, nil
	default:
		return Conversation{}, fmt.Errorf("invalid conversation ref %q: unknown kind %q", raw, kind)
	}
}

// Kind returns the conversation kind.
func (c Conversation) Kind() ConversationKind { return c.kind }

// ID returns the raw channel or group identifier.
func (c Conversation) ID() string { return c.id }

// ChannelID returns the channel identifier and true when the
// conversation is a channel.
func (c Conversation) ChannelID() (ChannelID, bool) {
	if c.kind != KindChannel {
		return ChannelID{}, false
	}
	return ChannelID{id: c.id}, true
}

// GroupID returns the group identifier and true when the conversation
// is a direct-message group.
func (c Conversation) GroupID() (GroupID, bool) {
	if c.kind != KindGroup {
		return GroupID{}, false
	}
	return GroupID{id: c.id}, true
}

// IsZero reports whether the Conversation is the zero value.
func (c Conversation) IsZero() bool { return c.id == "" }

// String returns the canonical "kind/id" form.
func (c Conversation) String() string {
	if c.IsZero() {
		return ""
	}
	return string(c.kind) + "/" + c.id
}

// MarshalText implements encoding.TextMarshaler. Returns an error for
// the zero value, since serializing an empty conversation would
// produce ambiguous JSON.
func (c Conversation) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("cannot marshal zero Conversation")
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value.
func (c *Conversation) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*c = Conversation{}
		return nil
	}
	parsed, err := ParseConversation(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal Conversation: %w", err)
	}
	*c = parsed
	return nil
}
