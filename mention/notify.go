// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package mention

import (
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/span"
)

// Notifies reports whether a message body mentions the local user:
// directly, through an alias group the user belongs to, or through a
// special mention. @here and @channel count for every viewer of the
// conversation: whoever can see the message is eligible.
//
// aliasMember reports membership in an alias group; nil means the
// user belongs to no alias groups.
func Notifies(spans []span.Span, selfID ref.UserID, aliasMember func(ref.AliasID) bool) bool {
	for _, s := range spans {
		switch s.Type {
		case span.SpecialMention:
			return true
		case span.UserMention:
			if s.UserID == selfID {
				return true
			}
		case span.AliasMention:
			if aliasMember != nil && aliasMember(s.AliasID) {
				return true
			}
		}
	}
	return false
}
