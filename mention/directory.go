// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package mention

import (
	"strings"

	"github.com/parley-chat/parley/lib/ref"
)

// User is a mentionable community member.
type User struct {
	ID          ref.UserID `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName,omitempty"`
}

// Channel is a mentionable channel.
type Channel struct {
	ID   ref.ChannelID `json:"id"`
	Name string        `json:"name"`
}

// Alias is an alias group: a named set of users mentionable
// collectively. An alias name resolves with precedence over an
// identically-named username.
type Alias struct {
	ID        ref.AliasID  `json:"id"`
	Name      string       `json:"name"`
	MemberIDs []ref.UserID `json:"memberIds,omitempty"`
}

// Directory is the live directory data mentions resolve against. It
// is supplied per call by whoever holds current lists for the active
// context; the resolver never fetches.
type Directory struct {
	Users    []User
	Channels []Channel
	Aliases  []Alias
}

// userByName finds a user by case-insensitive username.
func (d Directory) userByName(name string) (User, bool) {
	for _, user := range d.Users {
		if strings.EqualFold(user.Username, name) {
			return user, true
		}
	}
	return User{}, false
}

// aliasByName finds an alias group by case-insensitive name.
func (d Directory) aliasByName(name string) (Alias, bool) {
	for _, alias := range d.Aliases {
		if strings.EqualFold(alias.Name, name) {
			return alias, true
		}
	}
	return Alias{}, false
}

// channelByName finds a channel by case-insensitive name.
func (d Directory) channelByName(name string) (Channel, bool) {
	for _, channel := range d.Channels {
		if strings.EqualFold(channel.Name, name) {
			return channel, true
		}
	}
	return Channel{}, false
}
