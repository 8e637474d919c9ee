// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package messenger wires the push channel, the REST client, and the
// message cache into the client-side messaging layer.
//
// Incoming push frames are decoded and applied to the cache in
// delivery order. A new-message or update event cancels any in-flight
// history fetch for its conversation, so a stale fetch response
// cannot clobber a live update that already landed. A canceled
// first-page or reconnect fetch is reissued: the retried page includes
// the live message, so nothing is lost. On reconnect the cache is
// invalidated wholesale and every open conversation is refetched;
// missed events are never replayed individually.
//
// Sending runs over the push channel with acknowledgment. Failure is
// a returned error, never a silent drop, and the two failure modes
// are distinct: ErrNotConnected fails immediately when the transport
// is down, ErrAckTimeout fires after a bounded wait for the server
// acknowledgment.
package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/api"
	"github.com/parley-chat/parley/cache"
	"github.com/parley-chat/parley/event"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/push"
	"github.com/parley-chat/parley/span"
)

// ErrNotConnected is returned by Send when the push channel has no
// live connection at send time.
var ErrNotConnected = errors.New("messenger: not connected")

// ErrAckTimeout is returned by Send when no acknowledgment arrives
// within the configured timeout. The message may still have been
// delivered; the caller decides whether to retry.
var ErrAckTimeout = errors.New("messenger: send acknowledgment timed out")

// DefaultAckTimeout bounds the wait for a send acknowledgment.
const DefaultAckTimeout = 10 * time.Second

// DefaultPageSize is the history page size requested from the server.
const DefaultPageSize = 50

// sendEventName is the frame name for outgoing messages.
const sendEventName = "message.send"

// History is the REST surface the messenger consumes. *api.Client
// implements it.
type History interface {
	ConversationMessages(ctx context.Context, conversation ref.Conversation, options api.PageOptions) (*api.MessagePage, error)
	MarkRead(ctx context.Context, conversation ref.Conversation, lastRead ref.MessageID) error
}

// Config configures a Messenger.
type Config struct {
	// Store is the message cache. Required.
	Store *cache.Store
	// Channel is the push transport. Required.
	Channel push.Channel
	// History is the REST client for pages and receipts. Required.
	History History

	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Clock bounds the send acknowledgment wait. Defaults to the real
	// clock.
	Clock clock.Clock
	// AckTimeout overrides DefaultAckTimeout when positive.
	AckTimeout time.Duration
	// PageSize overrides DefaultPageSize when positive.
	PageSize int
}

// Messenger is the top-level messaging object.
type Messenger struct {
	store      *cache.Store
	channel    push.Channel
	history    History
	logger     *slog.Logger
	clock      clock.Clock
	ackTimeout time.Duration
	pageSize   int

	mu       sync.Mutex
	closed   bool
	inflight map[ref.Conversation]*fetchHandle
	offs     []func()
}

// fetchHandle identifies one in-flight page fetch so a finished fetch
// only removes its own registration.
type fetchHandle struct {
	cancel context.CancelFunc
}

// New constructs a Messenger and subscribes it to the push channel.
// Call Close to unsubscribe.
func New(cfg Config) (*Messenger, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("messenger: Config.Store is required")
	}
	if cfg.Channel == nil {
		return nil, fmt.Errorf("messenger: Config.Channel is required")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("messenger: Config.History is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	m := &Messenger{
		store:      cfg.Store,
		channel:    cfg.Channel,
		history:    cfg.History,
		logger:     logger,
		clock:      clk,
		ackTimeout: ackTimeout,
		pageSize:   pageSize,
		inflight:   make(map[ref.Conversation]*fetchHandle),
	}

	names := []string{
		event.TypeNewMessage,
		event.TypeUpdateMessage,
		event.TypeDeleteMessage,
		event.TypeReactionAdded,
		event.TypeReactionRemoved,
		event.TypeMessagePinned,
		event.TypeMessageUnpinned,
		event.TypeThreadReplyCount,
		event.TypeReadReceipt,
		event.TypeTypingStarted,
	}
	for _, name := range names {
		name := name
		m.offs = append(m.offs, cfg.Channel.On(name, func(payload json.RawMessage) {
			m.handleEvent(name, payload)
		}))
	}
	m.offs = append(m.offs, cfg.Channel.OnConnect(func() {
		go m.refetchAll()
	}))
	return m, nil
}

// Store returns the cache for read access.
func (m *Messenger) Store() *cache.Store { return m.store }

// handleEvent decodes one push frame and applies it to the cache.
// Handlers run on the channel's dispatch goroutine, so per-connection
// delivery order carries through to the reducers.
func (m *Messenger) handleEvent(name string, payload json.RawMessage) {
	decoded, err := event.Decode(name, payload)
	if err != nil {
		m.logger.Warn("messenger: dropping push event", "event", name, "error", err)
		return
	}

	m.store.Apply(decoded)

	// A live create or edit supersedes any fetch racing it for the
	// same conversation. Applied first: canceling triggers a retried
	// fetch, and its page must not index the message before the live
	// event has counted it.
	switch e := decoded.(type) {
	case *event.NewMessage:
		if conversation, ok := e.Message.Conversation(); ok {
			m.cancelFetch(conversation)
		}
	case *event.UpdateMessage:
		if conversation, ok := e.Message.Conversation(); ok {
			m.cancelFetch(conversation)
		}
	}
}

// Open loads the newest page of a conversation into the cache. A
// no-op when a load for it is already in flight. A fetch superseded by
// a live event for the same conversation is reissued: the first page
// is still missing, and the retried page includes the live message.
func (m *Messenger) Open(ctx context.Context, conversation ref.Conversation) error {
	if conversation.IsZero() {
		return fmt.Errorf("messenger: conversation is required")
	}
	if !m.store.BeginLoad(conversation) {
		return nil
	}

	for {
		page, err := m.fetch(ctx, conversation, "")
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() == nil && !m.isClosed() {
				continue
			}
			m.store.FailLoad(conversation)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("messenger: opening %s: %w", conversation, err)
		}
		m.store.CompleteLoad(conversation, page.Messages, page.ContinuationToken)
		return nil
	}
}

// LoadOlder fetches the next page of older history. A no-op when the
// history is exhausted or the conversation is not loaded.
func (m *Messenger) LoadOlder(ctx context.Context, conversation ref.Conversation) error {
	token, ok := m.store.ContinuationToken(conversation)
	if !ok {
		return nil
	}
	page, err := m.fetch(ctx, conversation, token)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("messenger: loading older history for %s: %w", conversation, err)
	}
	m.store.AppendOlderPage(conversation, page.Messages, page.ContinuationToken)
	return nil
}

// fetch runs one page fetch under a cancelable context tracked per
// conversation, so a live event can abort it.
func (m *Messenger) fetch(ctx context.Context, conversation ref.Conversation, token string) (*api.MessagePage, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle := &fetchHandle{cancel: cancel}
	m.mu.Lock()
	if previous, ok := m.inflight[conversation]; ok {
		previous.cancel()
	}
	m.inflight[conversation] = handle
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if m.inflight[conversation] == handle {
			delete(m.inflight, conversation)
		}
		m.mu.Unlock()
	}()

	return m.history.ConversationMessages(fetchCtx, conversation, api.PageOptions{
		Token: token,
		Limit: m.pageSize,
	})
}

// cancelFetch aborts the in-flight fetch for a conversation, if any.
func (m *Messenger) cancelFetch(conversation ref.Conversation) {
	m.mu.Lock()
	handle, ok := m.inflight[conversation]
	delete(m.inflight, conversation)
	m.mu.Unlock()
	if ok {
		handle.cancel()
	}
}

// refetchAll runs after a reconnect: every open conversation is
// marked stale and refetched from scratch.
func (m *Messenger) refetchAll() {
	stale := m.store.InvalidateAll()
	if len(stale) == 0 {
		return
	}
	m.logger.Info("messenger: reconnected, refetching conversations", "count", len(stale))
	for _, conversation := range stale {
		m.refetchConversation(conversation)
	}
}

// refetchConversation fetches a fresh first page for one stale entry.
// A live event arriving mid-fetch cancels it; the entry is still stale
// then, so the fetch is reissued until one completes and CompleteLoad
// clears the staleness. The retried page includes the live message.
func (m *Messenger) refetchConversation(conversation ref.Conversation) {
	for {
		page, err := m.fetch(context.Background(), conversation, "")
		if err != nil {
			if errors.Is(err, context.Canceled) {
				if m.isClosed() || !m.store.Stale(conversation) {
					return
				}
				continue
			}
			m.logger.Warn("messenger: refetch failed",
				"conversation", conversation.String(), "error", err)
			return
		}
		m.store.CompleteLoad(conversation, page.Messages, page.ContinuationToken)
		return
	}
}

// isClosed reports whether Close has run, so retry loops stop instead
// of reissuing fetches Close just canceled.
func (m *Messenger) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// sendRequest is the payload of an outgoing message frame.
type sendRequest struct {
	ChannelID *ref.ChannelID `json:"channelId,omitempty"`
	GroupID   *ref.GroupID   `json:"directMessageGroupId,omitempty"`
	Spans     []span.Span    `json:"spans"`
	// TransactionID lets the server deduplicate retried sends.
	TransactionID string `json:"transactionId"`
}

// sendAck is the acknowledgment payload for a message frame.
type sendAck struct {
	MessageID ref.MessageID `json:"messageId"`
	Error     *api.APIError `json:"error,omitempty"`
}

// Send submits a message to a conversation and waits for the server
// acknowledgment. The span list is guarded at this boundary: an empty
// list becomes a single empty plaintext span, since the server
// requires at least one span per message.
//
// Returns ErrNotConnected immediately when the transport is down, and
// ErrAckTimeout after the configured wait with no acknowledgment.
func (m *Messenger) Send(ctx context.Context, conversation ref.Conversation, spans []span.Span) (ref.MessageID, error) {
	if conversation.IsZero() {
		return ref.MessageID{}, fmt.Errorf("messenger: conversation is required")
	}
	spans = span.EnsureNonEmpty(spans)
	for _, s := range spans {
		if err := s.Validate(); err != nil {
			return ref.MessageID{}, fmt.Errorf("messenger: invalid span: %w", err)
		}
	}

	request := sendRequest{Spans: spans, TransactionID: uuid.NewString()}
	if channelID, ok := conversation.ChannelID(); ok {
		request.ChannelID = &channelID
	}
	if groupID, ok := conversation.GroupID(); ok {
		request.GroupID = &groupID
	}

	if !m.channel.Connected() {
		return ref.MessageID{}, ErrNotConnected
	}
	waiter, err := m.channel.EmitWithAck(sendEventName, request)
	if err != nil {
		if errors.Is(err, push.ErrNotConnected) {
			return ref.MessageID{}, ErrNotConnected
		}
		return ref.MessageID{}, fmt.Errorf("messenger: sending: %w", err)
	}

	select {
	case payload := <-waiter:
		var ack sendAck
		if err := json.Unmarshal(payload, &ack); err != nil {
			return ref.MessageID{}, fmt.Errorf("messenger: parsing send ack: %w", err)
		}
		if ack.Error != nil {
			return ref.MessageID{}, fmt.Errorf("messenger: send rejected: %w", ack.Error)
		}
		return ack.MessageID, nil
	case <-m.clock.After(m.ackTimeout):
		return ref.MessageID{}, ErrAckTimeout
	case <-ctx.Done():
		return ref.MessageID{}, ctx.Err()
	}
}

// NotifyTyping tells the server the local user is typing. Fire and
// forget: a failed or dropped indicator is harmless.
func (m *Messenger) NotifyTyping(conversation ref.Conversation) {
	if conversation.IsZero() {
		return
	}
	scope := scopeFor(conversation)
	if err := m.channel.Emit(event.TypeTypingStarted, scope); err != nil {
		m.logger.Debug("messenger: typing notification dropped", "error", err)
	}
}

// MarkRead reports the read position to the server and resets the
// local unread record without waiting for the receipt to echo back.
func (m *Messenger) MarkRead(ctx context.Context, conversation ref.Conversation, lastRead ref.MessageID) error {
	if err := m.history.MarkRead(ctx, conversation, lastRead); err != nil {
		return fmt.Errorf("messenger: marking read: %w", err)
	}
	m.store.Apply(&event.ReadReceiptUpdated{
		Scope:             scopeFor(conversation),
		LastReadMessageID: lastRead,
	})
	return nil
}

// Close unsubscribes from the push channel and aborts in-flight
// fetches. The channel itself is not closed; its owner does that.
func (m *Messenger) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	offs := m.offs
	m.offs = nil
	handles := make([]*fetchHandle, 0, len(m.inflight))
	for _, handle := range m.inflight {
		handles = append(handles, handle)
	}
	m.inflight = make(map[ref.Conversation]*fetchHandle)
	m.mu.Unlock()

	for _, off := range offs {
		off()
	}
	for _, handle := range handles {
		handle.cancel()
	}
}

func scopeFor(conversation ref.Conversation) event.Scope {
	if channelID, ok := conversation.ChannelID(); ok {
		return event.ChannelScope(channelID)
	}
	if groupID, ok := conversation.GroupID(); ok {
		return event.GroupScope(groupID)
	}
	return event.Scope{}
}
