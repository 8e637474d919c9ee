// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache holds the client's per-conversation message state and
// the reducers that keep it consistent under real-time events.
//
// A Store is an explicitly constructed value, not a process singleton:
// tests build isolated stores and a client could run several. All
// state lives behind one mutex; every reducer is a synchronous
// read-modify-write, so an event handler can never observe a
// half-applied mutation. Reads return snapshots.
//
// Events for conversations or messages the store does not currently
// hold are dropped silently. The store tolerates partial, late, and
// duplicate delivery: applying the same new-message or delete event
// twice yields the same state as applying it once.
package cache

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/parley-chat/parley/event"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/message"
)

// EntryState is the lifecycle state of one conversation's cache entry.
type EntryState string

const (
	// StateEmpty means no load has been attempted.
	StateEmpty EntryState = "empty"
	// StateLoading means the first page fetch is in flight.
	StateLoading EntryState = "loading"
	// StateLoaded means at least one page is held. Live events mutate
	// loaded state directly; only explicit older-page fetches and
	// reconnect refetches go back through a loading phase.
	StateLoaded EntryState = "loaded"
)

// entry is one conversation's paginated message state. Pages are
// newest-first: pages[0] is the most recent page and each page is
// ordered newest-first internally, so the flattened list reads from
// newest to oldest.
type entry struct {
	state EntryState
	pages [][]message.Message
	// token continues pagination into older history; empty means the
	// history is exhausted.
	token string
	// stale is set by InvalidateAll after a reconnect. The entry keeps
	// serving its (possibly outdated) pages until the refetch lands.
	stale bool
}

// Unread is the per-conversation unread record. It is maintained
// entirely from events (new messages and read receipts), independent
// of which pages are loaded.
type Unread struct {
	Count             int
	LastReadMessageID ref.MessageID
	LastReadAt        time.Time
}

// DefaultTypingExpiry is how long a typing indicator stays visible
// without a refresh. The server sends no stop event.
const DefaultTypingExpiry = 6 * time.Second

// StoreConfig configures a Store.
type StoreConfig struct {
	// SelfID is the local user. Required: unread accounting needs to
	// tell the local user's messages from everyone else's.
	SelfID ref.UserID

	// Logger for dropped-event diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Clock for read-receipt timestamps and typing expiry. Defaults to
	// the real clock.
	Clock clock.Clock

	// TypingExpiry overrides DefaultTypingExpiry when positive.
	TypingExpiry time.Duration
}

var errSelfIDRequired = errors.New("cache: StoreConfig.SelfID is required")

// Store is the authoritative client-side message cache.
type Store struct {
	selfID       ref.UserID
	logger       *slog.Logger
	clock        clock.Clock
	typingExpiry time.Duration

	mu      sync.Mutex
	entries map[ref.Conversation]*entry
	unread  map[ref.Conversation]Unread
	typing  map[ref.Conversation]map[ref.UserID]time.Time
	index   *Index
}

// NewStore constructs a Store. The zero SelfID is rejected.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.SelfID.IsZero() {
		return nil, errSelfIDRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	typingExpiry := cfg.TypingExpiry
	if typingExpiry <= 0 {
		typingExpiry = DefaultTypingExpiry
	}
	return &Store{
		selfID:       cfg.SelfID,
		logger:       logger,
		clock:        clk,
		typingExpiry: typingExpiry,
		entries:      make(map[ref.Conversation]*entry),
		unread:       make(map[ref.Conversation]Unread),
		typing:       make(map[ref.Conversation]map[ref.UserID]time.Time),
		index:        NewIndex(),
	}, nil
}

// Index returns the store's message index. Exposed for event routing
// layers that resolve message-only payloads before dispatch.
func (s *Store) Index() *Index { return s.index }

// Apply routes one decoded push event to its reducer. Events that
// cannot be routed to a held conversation or message are dropped
// after a debug log. Within one conversation, callers must Apply
// events in the order the transport delivered them.
func (s *Store) Apply(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := e.(type) {
	case *event.NewMessage:
		s.applyNewMessage(e)
	case *event.UpdateMessage:
		s.applyUpdateMessage(e)
	case *event.DeleteMessage:
		s.applyDeleteMessage(e)
	case *event.ReactionAdded:
		s.applyReactionAdded(e)
	case *event.ReactionRemoved:
		s.applyReactionRemoved(e)
	case *event.MessagePinned:
		s.applyMessagePinned(e)
	case *event.MessageUnpinned:
		s.applyMessageUnpinned(e)
	case *event.ThreadReplyCountUpdated:
		s.applyThreadReplyCount(e)
	case *event.ReadReceiptUpdated:
		s.applyReadReceipt(e)
	case *event.TypingStarted:
		s.applyTypingStarted(e)
	default:
		s.logger.Debug("cache: dropping event of unhandled type", "event", e.Name())
	}
}

// applyNewMessage prepends the message at the newest position and
// bumps the unread count when someone else authored it. Duplicate
// delivery of the same message ID is a no-op, including for unread
// accounting.
func (s *Store) applyNewMessage(e *event.NewMessage) {
	conversation, ok := e.Message.Conversation()
	if !ok {
		s.logger.Debug("cache: new message without owner", "messageId", e.Message.ID)
		return
	}
	if _, seen := s.index.Lookup(e.Message.ID); seen {
		return
	}

	if ent, ok := s.entries[conversation]; ok && ent.state == StateLoaded {
		if len(ent.pages) == 0 {
			ent.pages = [][]message.Message{nil}
		}
		ent.pages[0] = append([]message.Message{e.Message}, ent.pages[0]...)
	}
	s.index.Record(e.Message.ID, conversation)

	if e.Message.AuthorID != s.selfID {
		record := s.unread[conversation]
		record.Count++
		s.unread[conversation] = record
	}
	// A delivered message supersedes its author's typing indicator.
	delete(s.typing[conversation], e.Message.AuthorID)
}

// applyUpdateMessage replaces the cached copy in place, preserving its
// page position. A message on an unloaded page is a silent no-op.
func (s *Store) applyUpdateMessage(e *event.UpdateMessage) {
	conversation, ok := e.Message.Conversation()
	if !ok {
		s.logger.Debug("cache: update without owner", "messageId", e.Message.ID)
		return
	}
	ent, pageIdx, msgIdx, ok := s.locate(conversation, e.Message.ID)
	if !ok {
		return
	}
	ent.pages[pageIdx][msgIdx] = e.Message
}

// applyDeleteMessage removes the message from whichever page holds it.
// The index entry goes away regardless, so a duplicate delete is a
// no-op.
func (s *Store) applyDeleteMessage(e *event.DeleteMessage) {
	conversation, ok := e.Conversation()
	if !ok {
		if conversation, ok = s.index.Lookup(e.MessageID); !ok {
			return
		}
	}
	if ent, pageIdx, msgIdx, found := s.locate(conversation, e.MessageID); found {
		page := ent.pages[pageIdx]
		ent.pages[pageIdx] = append(page[:msgIdx], page[msgIdx+1:]...)
	}
	s.index.Remove(e.MessageID)
}

// applyReactionAdded merges the per-emoji user set the server sent.
// The payload set is the post-add snapshot for that emoji, so
// re-delivery converges instead of duplicating.
func (s *Store) applyReactionAdded(e *event.ReactionAdded) {
	msg, ok := s.locateByID(e.MessageID, e.Scope)
	if !ok {
		return
	}
	msg.Reactions = message.MergeReaction(msg.Reactions, e.Reaction)
}

// applyReactionRemoved replaces the full reaction list with the
// post-removal snapshot.
func (s *Store) applyReactionRemoved(e *event.ReactionRemoved) {
	msg, ok := s.locateByID(e.MessageID, e.Scope)
	if !ok {
		return
	}
	msg.Reactions = message.ReplaceReactions(e.Reactions)
}

func (s *Store) applyMessagePinned(e *event.MessagePinned) {
	conversation := ref.ChannelConversation(e.ChannelID)
	ent, pageIdx, msgIdx, ok := s.locate(conversation, e.MessageID)
	if !ok {
		return
	}
	msg := &ent.pages[pageIdx][msgIdx]
	msg.Pinned = true
	msg.PinnedBy = e.PinnedBy
	msg.PinnedAt = e.PinnedAt
}

func (s *Store) applyMessageUnpinned(e *event.MessageUnpinned) {
	conversation := ref.ChannelConversation(e.ChannelID)
	ent, pageIdx, msgIdx, ok := s.locate(conversation, e.MessageID)
	if !ok {
		return
	}
	msg := &ent.pages[pageIdx][msgIdx]
	msg.Pinned = false
	msg.PinnedBy = nil
	msg.PinnedAt = nil
}

// applyThreadReplyCount overwrites the reply metadata on the thread
// root.
func (s *Store) applyThreadReplyCount(e *event.ThreadReplyCountUpdated) {
	msg, ok := s.locateByID(e.ParentMessageID, e.Scope)
	if !ok {
		return
	}
	msg.ReplyCount = e.ReplyCount
	msg.LastReplyAt = e.LastReplyAt
}

// applyReadReceipt resets the conversation's unread record. Receipt
// handling is independent of which pages are loaded.
func (s *Store) applyReadReceipt(e *event.ReadReceiptUpdated) {
	conversation, ok := e.Conversation()
	if !ok {
		s.logger.Debug("cache: read receipt without conversation")
		return
	}
	s.unread[conversation] = Unread{
		LastReadMessageID: e.LastReadMessageID,
		LastReadAt:        s.clock.Now(),
	}
}

func (s *Store) applyTypingStarted(e *event.TypingStarted) {
	conversation, ok := e.Conversation()
	if !ok || e.UserID.IsZero() || e.UserID == s.selfID {
		return
	}
	users := s.typing[conversation]
	if users == nil {
		users = make(map[ref.UserID]time.Time)
		s.typing[conversation] = users
	}
	users[e.UserID] = s.clock.Now().Add(s.typingExpiry)
}

// locate finds a message by ID within one conversation's loaded pages.
// Callers hold s.mu.
func (s *Store) locate(conversation ref.Conversation, messageID ref.MessageID) (*entry, int, int, bool) {
	ent, ok := s.entries[conversation]
	if !ok || ent.state != StateLoaded {
		return nil, 0, 0, false
	}
	for pageIdx, page := range ent.pages {
		for msgIdx := range page {
			if page[msgIdx].ID == messageID {
				return ent, pageIdx, msgIdx, true
			}
		}
	}
	return nil, 0, 0, false
}

// locateByID routes a message-only payload: index lookup first, then
// the event's own scope as fallback. Callers hold s.mu.
func (s *Store) locateByID(messageID ref.MessageID, scope event.Scope) (*message.Message, bool) {
	conversation, ok := s.index.Lookup(messageID)
	if !ok {
		if conversation, ok = scope.Conversation(); !ok {
			return nil, false
		}
	}
	ent, pageIdx, msgIdx, ok := s.locate(conversation, messageID)
	if !ok {
		return nil, false
	}
	return &ent.pages[pageIdx][msgIdx], true
}

// BeginLoad transitions the conversation to Loading for a first-page
// fetch. Returns false when a load is already in flight, so callers
// do not issue duplicate fetches.
func (s *Store) BeginLoad(conversation ref.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok {
		s.entries[conversation] = &entry{state: StateLoading}
		return true
	}
	if ent.state == StateLoading {
		return false
	}
	ent.state = StateLoading
	return true
}

// FailLoad reverts a Loading entry so a later BeginLoad can retry. An
// entry that already held pages keeps them and goes back to Loaded.
func (s *Store) FailLoad(conversation ref.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok || ent.state != StateLoading {
		return
	}
	if len(ent.pages) > 0 {
		ent.state = StateLoaded
		return
	}
	delete(s.entries, conversation)
}

// CompleteLoad installs the first page, replacing any previous pages
// (a reconnect refetch lands here too). Index entries for the
// conversation are rebuilt from the new page.
func (s *Store) CompleteLoad(conversation ref.Conversation, messages []message.Message, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok {
		ent = &entry{}
		s.entries[conversation] = ent
	}
	ent.state = StateLoaded
	ent.pages = [][]message.Message{append([]message.Message(nil), messages...)}
	ent.token = token
	ent.stale = false

	s.index.ClearConversation(conversation)
	for _, msg := range messages {
		s.index.Record(msg.ID, conversation)
	}
}

// AppendOlderPage adds a page of older history behind the existing
// pages and advances the continuation token. No-op unless the entry is
// Loaded.
func (s *Store) AppendOlderPage(conversation ref.Conversation, messages []message.Message, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok || ent.state != StateLoaded {
		return
	}
	ent.pages = append(ent.pages, append([]message.Message(nil), messages...))
	ent.token = token
	for _, msg := range messages {
		s.index.Record(msg.ID, conversation)
	}
}

// Unload drops a conversation's pages and typing state. The unread
// record and the index's delivered-ID memory both survive: they are
// event-driven and must hold across page loading, or a message
// redelivered after the unload would bump the unread count again.
func (s *Store) Unload(conversation ref.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversation)
	delete(s.typing, conversation)
}

// InvalidateAll marks every loaded conversation stale and returns the
// list to refetch. Called after a transport reconnect: missed events
// are not replayed, so each open conversation is refetched wholesale.
func (s *Store) InvalidateAll() []ref.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []ref.Conversation
	for conversation, ent := range s.entries {
		if ent.state != StateLoaded {
			continue
		}
		ent.stale = true
		stale = append(stale, conversation)
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].String() < stale[j].String() })
	return stale
}

// State returns the lifecycle state of a conversation's entry.
func (s *Store) State(conversation ref.Conversation) EntryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok {
		return StateEmpty
	}
	return ent.state
}

// Stale reports whether the conversation's entry awaits a reconnect
// refetch.
func (s *Store) Stale(conversation ref.Conversation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	return ok && ent.stale
}

// Messages returns the flattened newest-first message list for a
// conversation. The result is a copy; mutating it does not touch the
// cache.
func (s *Store) Messages(conversation ref.Conversation) []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok || ent.state != StateLoaded {
		return nil
	}
	total := 0
	for _, page := range ent.pages {
		total += len(page)
	}
	flattened := make([]message.Message, 0, total)
	for _, page := range ent.pages {
		flattened = append(flattened, page...)
	}
	return flattened
}

// ContinuationToken returns the token for fetching older history. ok
// is false when the entry is not loaded or the history is exhausted.
func (s *Store) ContinuationToken(conversation ref.Conversation) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[conversation]
	if !ok || ent.state != StateLoaded || ent.token == "" {
		return "", false
	}
	return ent.token, true
}

// UnreadState returns the conversation's unread record.
func (s *Store) UnreadState(conversation ref.Conversation) Unread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conversation]
}

// UnreadCount returns just the unread counter.
func (s *Store) UnreadCount(conversation ref.Conversation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conversation].Count
}

// Typing returns the users currently typing in a conversation, sorted
// by ID. Expired indicators are pruned as a side effect.
func (s *Store) Typing(conversation ref.Conversation) []ref.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := s.typing[conversation]
	if len(users) == 0 {
		return nil
	}
	now := s.clock.Now()
	var active []ref.UserID
	for userID, expiry := range users {
		if expiry.Before(now) || expiry.Equal(now) {
			delete(users, userID)
			continue
		}
		active = append(active, userID)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].String() < active[j].String() })
	return active
}
