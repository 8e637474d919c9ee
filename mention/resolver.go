// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package mention turns free-form message text into the typed span
// sequence and back.
//
// The pipeline has two stages. [Scan] is a lexical pass producing
// positional mention candidates (@user, @here/@channel, #channel)
// while excluding anything inside fenced or inline code. [Resolve]
// maps candidates to concrete entities against caller-supplied
// directory data and emits the final span sequence, with plaintext
// spans filling every gap so the concatenated span text reproduces
// the input exactly.
//
// Resolution never fails: a candidate that matches nothing in the
// directory degrades to a plaintext span holding the literal typed
// text. The editor therefore never loses keystrokes, whatever the
// directory contains. For an @-candidate, an alias-group name match
// wins over a username match.
//
// [CurrentMention] and [InsertMention] support the compose box:
// detecting the mention being typed at the cursor and splicing in a
// completion. All functions are pure and cheap enough to call on
// every keystroke.
package mention

import "github.com/parley-chat/parley/span"

// Resolve scans text and maps every candidate against the directory,
// producing the ordered span sequence. Gaps between matches become
// plaintext spans; zero-length gaps are omitted. Unresolvable
// candidates degrade to plaintext spans holding the literal matched
// text.
//
// The result concatenates back to exactly the input text. An empty
// input produces zero spans; callers that need the server's
// at-least-one-span invariant apply span.EnsureNonEmpty at the submit
// boundary.
func Resolve(text string, directory Directory) []span.Span {
	matches := Scan(text)

	var spans []span.Span
	previousEnd := 0
	for _, match := range matches {
		if match.Start > previousEnd {
			spans = append(spans, span.NewPlaintext(text[previousEnd:match.Start]))
		}
		spans = append(spans, resolveMatch(match, directory))
		previousEnd = match.End
	}
	if previousEnd < len(text) {
		spans = append(spans, span.NewPlaintext(text[previousEnd:]))
	}
	return spans
}

// resolveMatch maps one candidate to its span. Precedence for user
// candidates: alias group first, then username; both case-insensitive.
func resolveMatch(match Match, directory Directory) span.Span {
	switch match.Type {
	case MatchSpecial:
		// No directory lookup: the keywords are closed.
		return span.NewSpecial(match.Text, span.SpecialKind(match.Query))

	case MatchUser:
		if alias, ok := directory.aliasByName(match.Query); ok {
			return span.NewAlias(match.Text, alias.ID)
		}
		if user, ok := directory.userByName(match.Query); ok {
			return span.NewUser(match.Text, user.ID)
		}

	case MatchChannel:
		if channel, ok := directory.channelByName(match.Query); ok {
			return span.NewCommunity(match.Text, channel.ID)
		}
	}

	// Unresolvable: keep the literal text visible.
	return span.NewPlaintext(match.Text)
}
