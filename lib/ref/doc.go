// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identifier wrappers
// for Parley entities: users, messages, channels, direct-message
// groups, and alias groups.
//
// Server-assigned identifiers are opaque strings with no internal
// structure. The types exist to prevent accidental confusion between
// identifier kinds (a message ID passed where a channel ID is
// expected) at compile time.
//
// Conversation is the one composite reference: every message belongs
// to exactly one channel or one direct-message group, and Conversation
// captures that mutually exclusive ownership as a single value. It is
// the partition key for the message cache and for event routing.
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// JSON and CBOR share one canonical serialized form.
package ref
