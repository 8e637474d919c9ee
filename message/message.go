// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package message defines the message data model shared by the HTTP
// API, the push-channel events, and the local cache.
//
// A message belongs to exactly one conversation: either ChannelID or
// GroupID is set, never both. That mutually exclusive ownership is the
// partition key for caching and event routing; Conversation() folds
// the two fields into a single ref.Conversation value.
//
// Types here carry json struct tags only. The CBOR snapshot encoder
// (lib/codec) reads json tags as fallback, so one tag set serves both
// the wire and the on-disk snapshot.
package message

import (
	"time"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/span"
)

// Message is one message as held in the cache and exchanged with the
// server. Identified by a server-assigned opaque ID.
type Message struct {
	ID       ref.MessageID `json:"id"`
	AuthorID ref.UserID    `json:"authorId"`

	// Exactly one of ChannelID and GroupID is set.
	ChannelID *ref.ChannelID `json:"channelId,omitempty"`
	GroupID   *ref.GroupID   `json:"directMessageGroupId,omitempty"`

	// Spans is the ordered typed content. Never empty on the wire;
	// an empty message is a single empty plaintext span.
	Spans []span.Span `json:"spans"`

	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`

	SentAt    time.Time  `json:"sentAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Pin metadata. Pins are channel-scoped.
	Pinned   bool        `json:"pinned,omitempty"`
	PinnedBy *ref.UserID `json:"pinnedBy,omitempty"`
	PinnedAt *time.Time  `json:"pinnedAt,omitempty"`

	// Thread metadata. ParentID is set on replies; ReplyCount and
	// LastReplyAt are maintained on the thread root.
	ParentID    *ref.MessageID `json:"parentMessageId,omitempty"`
	ReplyCount  int            `json:"replyCount,omitempty"`
	LastReplyAt *time.Time     `json:"lastReplyAt,omitempty"`
}

// Conversation returns the owning conversation. ok is false when
// neither owner field is set (a malformed payload; callers treat it
// as unroutable and drop the event).
func (m *Message) Conversation() (ref.Conversation, bool) {
	switch {
	case m.ChannelID != nil && !m.ChannelID.IsZero():
		return ref.ChannelConversation(*m.ChannelID), true
	case m.GroupID != nil && !m.GroupID.IsZero():
		return ref.GroupConversation(*m.GroupID), true
	default:
		return ref.Conversation{}, false
	}
}

// Text returns the plain-text rendering of the message body.
func (m *Message) Text() string {
	return span.Text(m.Spans)
}

// Attachment is a file attached to a message. Fetching the blob is an
// external concern; the model only carries the reference.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Reaction is the set of users who reacted with one emoji. A message
// holds at most one Reaction per distinct emoji; an entry whose user
// set becomes empty is removed rather than kept as a tombstone.
type Reaction struct {
	Emoji   string       `json:"emoji"`
	UserIDs []ref.UserID `json:"userIds"`
}
