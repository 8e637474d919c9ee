// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"

	"github.com/parley-chat/parley/lib/ref"
)

// Index maps message IDs to their owning conversation. It exists so a
// per-message event whose payload carries only the message ID can be
// routed in O(1) instead of scanning every loaded conversation.
//
// The index is best-effort, never authoritative: entries appear when a
// conversation's pages are loaded and vanish when the conversation is
// unloaded. A lookup miss means the event is dropped, not an error.
type Index struct {
	mu sync.Mutex
	// byMessage is the forward map; byConversation tracks membership so
	// ClearConversation need not scan the whole forward map.
	byMessage      map[ref.MessageID]ref.Conversation
	byConversation map[ref.Conversation]map[ref.MessageID]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byMessage:      make(map[ref.MessageID]ref.Conversation),
		byConversation: make(map[ref.Conversation]map[ref.MessageID]struct{}),
	}
}

// Record remembers that messageID belongs to conversation. Recording
// the same message again overwrites silently.
func (x *Index) Record(messageID ref.MessageID, conversation ref.Conversation) {
	if messageID.IsZero() || conversation.IsZero() {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if previous, ok := x.byMessage[messageID]; ok && previous != conversation {
		delete(x.byConversation[previous], messageID)
	}
	x.byMessage[messageID] = conversation
	members := x.byConversation[conversation]
	if members == nil {
		members = make(map[ref.MessageID]struct{})
		x.byConversation[conversation] = members
	}
	members[messageID] = struct{}{}
}

// Lookup returns the conversation owning messageID, if known.
func (x *Index) Lookup(messageID ref.MessageID) (ref.Conversation, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	conversation, ok := x.byMessage[messageID]
	return conversation, ok
}

// Remove forgets one message. Removing an unknown message is a no-op.
func (x *Index) Remove(messageID ref.MessageID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	conversation, ok := x.byMessage[messageID]
	if !ok {
		return
	}
	delete(x.byMessage, messageID)
	delete(x.byConversation[conversation], messageID)
	if len(x.byConversation[conversation]) == 0 {
		delete(x.byConversation, conversation)
	}
}

// ClearConversation forgets every message recorded for conversation.
// Called when the conversation is unloaded from the cache.
func (x *Index) ClearConversation(conversation ref.Conversation) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for messageID := range x.byConversation[conversation] {
		delete(x.byMessage, messageID)
	}
	delete(x.byConversation, conversation)
}

// Len returns the number of indexed messages.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byMessage)
}
