// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package span defines the typed representation of message content.
//
// A message body is a linear, order-preserving sequence of spans:
// plaintext fragments interleaved with typed mention references. The
// concatenated Text fields of a message's spans reconstruct the exact
// original input, so converting text to spans and back is lossless.
// That round-trip law is what lets the editor re-open a sent message
// for editing without ever losing user-typed characters.
//
// Exactly one type-specific reference field is populated per span:
// UserID for user mentions, SpecialKind for @here/@channel,
// CommunityID for channel references, AliasID for alias-group
// mentions. Plaintext spans carry only Text. The JSON encoding
// enforces this: fields that do not belong to the span's type are
// never emitted, whatever the struct holds.
package span

import (
	"encoding/json"
	"fmt"

	"github.com/parley-chat/parley/lib/ref"
)

// Type discriminates the span variants.
type Type string

const (
	// Plaintext is a literal text fragment.
	Plaintext Type = "PLAINTEXT"
	// UserMention references a single user (@alice).
	UserMention Type = "USER_MENTION"
	// SpecialMention is @here or @channel.
	SpecialMention Type = "SPECIAL_MENTION"
	// CommunityMention references a channel (#dev).
	CommunityMention Type = "COMMUNITY_MENTION"
	// AliasMention references an alias group (@devs).
	AliasMention Type = "ALIAS_MENTION"
)

// SpecialKind is the keyword of a special mention.
type SpecialKind string

const (
	// Here notifies currently-active viewers.
	Here SpecialKind = "here"
	// Channel notifies every member of the conversation.
	Channel SpecialKind = "channel"
)

// Span is one atomic fragment of message content. Text is always
// present: it is the literal display text of the fragment, and the
// concatenation of a message's span texts is the original input.
type Span struct {
	Type Type
	Text string

	// Exactly one of the following is set, matching Type.
	UserID      ref.UserID
	SpecialKind SpecialKind
	CommunityID ref.ChannelID
	AliasID     ref.AliasID
}

// NewPlaintext returns a plaintext span.
func NewPlaintext(text string) Span {
	return Span{Type: Plaintext, Text: text}
}

// NewUser returns a user-mention span. text is the literal form the
// user typed (e.g., "@alice").
func NewUser(text string, userID ref.UserID) Span {
	return Span{Type: UserMention, Text: text, UserID: userID}
}

// NewSpecial returns a special-mention span for @here or @channel.
func NewSpecial(text string, kind SpecialKind) Span {
	return Span{Type: SpecialMention, Text: text, SpecialKind: kind}
}

// NewCommunity returns a channel-reference span (e.g., "#dev").
func NewCommunity(text string, channelID ref.ChannelID) Span {
	return Span{Type: CommunityMention, Text: text, CommunityID: channelID}
}

// NewAlias returns an alias-group mention span.
func NewAlias(text string, aliasID ref.AliasID) Span {
	return Span{Type: AliasMention, Text: text, AliasID: aliasID}
}

// Text concatenates the Text fields of spans in order. This is the
// exact inverse of mention resolution: for any input text t,
// Text(Resolve(t, ...)) == t.
func Text(spans []Span) string {
	size := 0
	for _, s := range spans {
		size += len(s.Text)
	}
	buf := make([]byte, 0, size)
	for _, s := range spans {
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// EnsureNonEmpty guarantees the at-least-one-span invariant the server
// requires. A nil or empty slice becomes a single empty plaintext
// span; anything else is returned unchanged. Callers apply this at the
// submit boundary, not during editing.
func EnsureNonEmpty(spans []Span) []Span {
	if len(spans) == 0 {
		return []Span{NewPlaintext("")}
	}
	return spans
}

// Validate checks that the span's reference fields are consistent with
// its type: the type's own field populated (plaintext aside), the
// others zero.
func (s Span) Validate() error {
	wantUser := s.Type == UserMention
	wantSpecial := s.Type == SpecialMention
	wantCommunity := s.Type == CommunityMention
	wantAlias := s.Type == AliasMention

	switch s.Type {
	case Plaintext, UserMention, SpecialMention, CommunityMention, AliasMention:
	default:
		return fmt.Errorf("span: unknown type %q", s.Type)
	}

	if wantUser != !s.UserID.IsZero() {
		return fmt.Errorf("span: %s with userId=%q", s.Type, s.UserID)
	}
	if wantSpecial != (s.SpecialKind != "") {
		return fmt.Errorf("span: %s with specialKind=%q", s.Type, s.SpecialKind)
	}
	if wantSpecial && s.SpecialKind != Here && s.SpecialKind != Channel {
		return fmt.Errorf("span: unknown special kind %q", s.SpecialKind)
	}
	if wantCommunity != !s.CommunityID.IsZero() {
		return fmt.Errorf("span: %s with communityId=%q", s.Type, s.CommunityID)
	}
	if wantAlias != !s.AliasID.IsZero() {
		return fmt.Errorf("span: %s with aliasId=%q", s.Type, s.AliasID)
	}
	return nil
}

// wireSpan is the JSON shape. Pointer reference fields so that only
// the field belonging to the span's type appears on the wire.
type wireSpan struct {
	Type        Type           `json:"type"`
	Text        string         `json:"text"`
	UserID      *ref.UserID    `json:"userId,omitempty"`
	SpecialKind SpecialKind    `json:"specialKind,omitempty"`
	CommunityID *ref.ChannelID `json:"communityId,omitempty"`
	AliasID     *ref.AliasID   `json:"aliasId,omitempty"`
}

// MarshalJSON implements json.Marshaler. Only the reference field
// matching the span type is emitted.
func (s Span) MarshalJSON() ([]byte, error) {
	wire := wireSpan{Type: s.Type, Text: s.Text}
	switch s.Type {
	case UserMention:
		wire.UserID = &s.UserID
	case SpecialMention:
		wire.SpecialKind = s.SpecialKind
	case CommunityMention:
		wire.CommunityID = &s.CommunityID
	case AliasMention:
		wire.AliasID = &s.AliasID
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Span) UnmarshalJSON(data []byte) error {
	var wire wireSpan
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("span: decoding: %w", err)
	}
	decoded := Span{Type: wire.Type, Text: wire.Text, SpecialKind: wire.SpecialKind}
	if wire.UserID != nil {
		decoded.UserID = *wire.UserID
	}
	if wire.CommunityID != nil {
		decoded.CommunityID = *wire.CommunityID
	}
	if wire.AliasID != nil {
		decoded.AliasID = *wire.AliasID
	}
	*s = decoded
	return nil
}
