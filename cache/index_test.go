// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"testing"

	"github.com/parley-chat/parley/lib/ref"
)

func TestIndexRecordLookup(t *testing.T) {
	index := NewIndex()
	messageID, _ := ref.ParseMessageID("m1")
	channelID, _ := ref.ParseChannelID("c1")
	conversation := ref.ChannelConversation(channelID)

	if _, ok := index.Lookup(messageID); ok {
		t.Error("lookup on empty index should miss")
	}

	index.Record(messageID, conversation)
	got, ok := index.Lookup(messageID)
	if !ok || got != conversation {
		t.Errorf("Lookup = %v, %v, want %v, true", got, ok, conversation)
	}
}

func TestIndexRemove(t *testing.T) {
	index := NewIndex()
	messageID, _ := ref.ParseMessageID("m1")
	channelID, _ := ref.ParseChannelID("c1")
	conversation := ref.ChannelConversation(channelID)

	index.Record(messageID, conversation)
	index.Remove(messageID)
	if _, ok := index.Lookup(messageID); ok {
		t.Error("lookup after Remove should miss")
	}

	// Removing again is a no-op.
	index.Remove(messageID)
	if index.Len() != 0 {
		t.Errorf("Len = %d, want 0", index.Len())
	}
}

func TestIndexClearConversation(t *testing.T) {
	index := NewIndex()
	channelID, _ := ref.ParseChannelID("c1")
	otherID, _ := ref.ParseChannelID("c2")
	conversation := ref.ChannelConversation(channelID)
	other := ref.ChannelConversation(otherID)

	m1, _ := ref.ParseMessageID("m1")
	m2, _ := ref.ParseMessageID("m2")
	m3, _ := ref.ParseMessageID("m3")
	index.Record(m1, conversation)
	index.Record(m2, conversation)
	index.Record(m3, other)

	index.ClearConversation(conversation)
	if _, ok := index.Lookup(m1); ok {
		t.Error("m1 should be cleared")
	}
	if _, ok := index.Lookup(m2); ok {
		t.Error("m2 should be cleared")
	}
	if _, ok := index.Lookup(m3); !ok {
		t.Error("m3 belongs to another conversation and should survive")
	}
}

func TestIndexReRecordMovesConversation(t *testing.T) {
	index := NewIndex()
	messageID, _ := ref.ParseMessageID("m1")
	c1, _ := ref.ParseChannelID("c1")
	c2, _ := ref.ParseChannelID("c2")

	index.Record(messageID, ref.ChannelConversation(c1))
	index.Record(messageID, ref.ChannelConversation(c2))

	got, ok := index.Lookup(messageID)
	if !ok || got != ref.ChannelConversation(c2) {
		t.Errorf("Lookup = %v, want c2 conversation", got)
	}

	// Clearing the old conversation must not take the moved entry.
	index.ClearConversation(ref.ChannelConversation(c1))
	if _, ok := index.Lookup(messageID); !ok {
		t.Error("entry should survive clearing its former conversation")
	}
}

func TestIndexIgnoresZeroValues(t *testing.T) {
	index := NewIndex()
	messageID, _ := ref.ParseMessageID("m1")
	index.Record(messageID, ref.Conversation{})
	index.Record(ref.MessageID{}, ref.Conversation{})
	if index.Len() != 0 {
		t.Errorf("Len = %d, want 0", index.Len())
	}
}
