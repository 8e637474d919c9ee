// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package message

import "github.com/parley-chat/parley/lib/ref"

// MergeReaction merges an incoming reaction into the list. If an entry
// for the emoji exists, the incoming user set is unioned into it
// (existing order preserved, new users appended, no duplicates); a
// server-confirmed post-operation snapshot therefore converges to the
// snapshot. If no entry exists, the incoming reaction is appended. An
// entry whose merged user set is empty is dropped.
//
// The input slice is not mutated; the returned slice is the new value.
func MergeReaction(reactions []Reaction, incoming Reaction) []Reaction {
	merged := make([]Reaction, 0, len(reactions)+1)
	found := false
	for _, existing := range reactions {
		if existing.Emoji != incoming.Emoji {
			merged = append(merged, existing)
			continue
		}
		found = true
		union := unionUserIDs(existing.UserIDs, incoming.UserIDs)
		if len(union) == 0 {
			continue
		}
		merged = append(merged, Reaction{Emoji: incoming.Emoji, UserIDs: union})
	}
	if !found && len(incoming.UserIDs) > 0 {
		merged = append(merged, Reaction{
			Emoji:   incoming.Emoji,
			UserIDs: append([]ref.UserID(nil), incoming.UserIDs...),
		})
	}
	return merged
}

// ReplaceReactions returns the post-operation snapshot list with empty
// entries dropped. Used for event shapes that carry the full reaction
// list after the server applied the operation.
func ReplaceReactions(snapshot []Reaction) []Reaction {
	replaced := make([]Reaction, 0, len(snapshot))
	for _, reaction := range snapshot {
		if len(reaction.UserIDs) == 0 {
			continue
		}
		replaced = append(replaced, Reaction{
			Emoji:   reaction.Emoji,
			UserIDs: append([]ref.UserID(nil), reaction.UserIDs...),
		})
	}
	return replaced
}

// unionUserIDs preserves the order of existing and appends unseen
// incoming users.
func unionUserIDs(existing, incoming []ref.UserID) []ref.UserID {
	seen := make(map[ref.UserID]struct{}, len(existing))
	union := make([]ref.UserID, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	for _, id := range incoming {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	return union
}
