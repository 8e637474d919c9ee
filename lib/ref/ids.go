// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID identifies a user account. User IDs are opaque
// server-assigned strings with no internal structure.
type UserID struct {
	id string
}

// ParseUserID constructs a UserID from a raw string. Returns an error
// if the string is empty.
func ParseUserID(raw string) (UserID, error) {
	if raw == "" {
		return UserID{}, fmt.Errorf("user ID is empty")
	}
	return UserID{id: raw}, nil
}

// String returns the raw user ID string.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value (empty).
func (u UserID) IsZero() bool { return u.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) { return []byte(u.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (matching the omitempty JSON convention for
// optional user IDs, such as pinned-by).
func (u *UserID) UnmarshalText(data []byte) error {
	*u = UserID{id: string(data)}
	return nil
}

// MessageID identifies a message. Message IDs are opaque
// server-assigned strings.
type MessageID struct {
	id string
}

// ParseMessageID constructs a MessageID from a raw string. Returns an
// error if the string is empty.
func ParseMessageID(raw string) (MessageID, error) {
	if raw == "" {
		return MessageID{}, fmt.Errorf("message ID is empty")
	}
	return MessageID{id: raw}, nil
}

// String returns the raw message ID string.
func (m MessageID) String() string { return m.id }

// IsZero reports whether the MessageID is the zero value (empty).
func (m MessageID) IsZero() bool { return m.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (m MessageID) MarshalText() ([]byte, error) { return []byte(m.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (optional fields like thread parent ID).
func (m *MessageID) UnmarshalText(data []byte) error {
	*m = MessageID{id: string(data)}
	return nil
}

// ChannelID identifies a channel.
type ChannelID struct {
	id string
}

// ParseChannelID constructs a ChannelID from a raw string. Returns an
// error if the string is empty.
func ParseChannelID(raw string) (ChannelID, error) {
	if raw == "" {
		return ChannelID{}, fmt.Errorf("channel ID is empty")
	}
	return ChannelID{id: raw}, nil
}

// String returns the raw channel ID string.
func (c ChannelID) String() string { return c.id }

// IsZero reports whether the ChannelID is the zero value (empty).
func (c ChannelID) IsZero() bool { return c.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (c ChannelID) MarshalText() ([]byte, error) { return []byte(c.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ChannelID) UnmarshalText(data []byte) error {
	*c = ChannelID{id: string(data)}
	return nil
}

// GroupID identifies a direct-message group.
type GroupID struct {
	id string
}

// ParseGroupID constructs a GroupID from a raw string. Returns an
// error if the string is empty.
func ParseGroupID(raw string) (GroupID, error) {
	if raw == "" {
		return GroupID{}, fmt.Errorf("group ID is empty")
	}
	return GroupID{id: raw}, nil
}

// String returns the raw group ID string.
func (g GroupID) String() string { return g.id }

// IsZero reports whether the GroupID is the zero value (empty).
func (g GroupID) IsZero() bool { return g.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (g GroupID) MarshalText() ([]byte, error) { return []byte(g.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GroupID) UnmarshalText(data []byte) error {
	*g = GroupID{id: string(data)}
	return nil
}

// AliasID identifies an alias group (a named set of users mentionable
// collectively).
type AliasID struct {
	id string
}

// ParseAliasID constructs an AliasID from a raw string. Returns an
// error if the string is empty.
func ParseAliasID(raw string) (AliasID, error) {
	if raw == "" {
		return AliasID{}, fmt.Errorf("alias ID is empty")
	}
	return AliasID{id: raw}, nil
}

// String returns the raw alias ID string.
func (a AliasID) String() string { return a.id }

// IsZero reports whether the AliasID is the zero value (empty).
func (a AliasID) IsZero() bool { return a.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (a AliasID) MarshalText() ([]byte, error) { return []byte(a.id), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AliasID) UnmarshalText(data []byte) error {
	*a = AliasID{id: string(data)}
	return nil
}
