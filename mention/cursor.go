// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package mention

// Active describes the mention being typed at the cursor: the
// trigger character's position, the cursor position, and the partial
// query between them.
type Active struct {
	Type  MatchType
	Query string
	// Start is the byte offset of the trigger character; End is the
	// cursor position. Replacing [Start,End) completes the mention.
	Start int
	End   int
}

// isMentionByte reports whether b belongs to the mention character
// class (letters, digits, underscore, hyphen).
func isMentionByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '-':
		return true
	default:
		return false
	}
}

// CurrentMention reports the mention being typed at the cursor, if
// any. It scans backward from cursor while characters belong to the
// mention class; hitting a "@" or "#" trigger yields the in-progress
// mention, any other boundary yields none. An @-query equal to one of
// the special keywords is classified special.
func CurrentMention(text string, cursor int) (Active, bool) {
	if cursor < 0 || cursor > len(text) {
		return Active{}, false
	}

	queryStart := cursor
	for queryStart > 0 && isMentionByte(text[queryStart-1]) {
		queryStart--
	}
	if queryStart == 0 {
		return Active{}, false
	}

	trigger := text[queryStart-1]
	if trigger != '@' && trigger != '#' {
		return Active{}, false
	}

	// Everything in [queryStart,cursor) passed isMentionByte, so the
	// query needs no further validation.
	query := text[queryStart:cursor]

	matchType := MatchUser
	if trigger == '#' {
		matchType = MatchChannel
	} else if query == "here" || query == "channel" {
		matchType = MatchSpecial
	}
	return Active{
		Type:  matchType,
		Query: query,
		Start: queryStart - 1,
		End:   cursor,
	}, true
}

// Completion is a resolved directory entry chosen to complete the
// mention at the cursor.
type Completion struct {
	Type MatchType
	// Name is the canonical name to insert: username, alias-group
	// name, channel name, or special keyword.
	Name string
}

// CompleteUser returns a completion for a username.
func CompleteUser(username string) Completion {
	return Completion{Type: MatchUser, Name: username}
}

// CompleteAlias returns a completion for an alias-group name. Alias
// mentions render with the "@" trigger, like user mentions.
func CompleteAlias(name string) Completion {
	return Completion{Type: MatchUser, Name: name}
}

// CompleteSpecial returns a completion for @here or @channel.
func CompleteSpecial(kind string) Completion {
	return Completion{Type: MatchSpecial, Name: kind}
}

// CompleteChannel returns a completion for a channel name.
func CompleteChannel(name string) Completion {
	return Completion{Type: MatchChannel, Name: name}
}

// canonical is the rendered insertion form: trigger, name, one
// trailing space.
func (c Completion) canonical() string {
	trigger := "@"
	if c.Type == MatchChannel {
		trigger = "#"
	}
	return trigger + c.Name + " "
}

// InsertMention splices the completion into text. If a mention is
// actively being typed at the cursor, exactly its [Start,End) range is
// replaced by the canonical form; otherwise the canonical form is
// inserted at the cursor. Returns the new text and the new cursor
// position, which always equals insertionStart + len(inserted).
func InsertMention(text string, cursor int, completion Completion) (string, int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(text) {
		cursor = len(text)
	}

	inserted := completion.canonical()
	insertionStart := cursor
	replaceEnd := cursor
	if active, ok := CurrentMention(text, cursor); ok {
		insertionStart = active.Start
		replaceEnd = active.End
	}

	newText := text[:insertionStart] + inserted + text[replaceEnd:]
	return newText, insertionStart + len(inserted)
}
