// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package mention

import (
	"testing"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/span"
)

func testDirectory(t *testing.T) Directory {
	t.Helper()
	aliceID, _ := ref.ParseUserID("u-alice")
	devsUserID, _ := ref.ParseUserID("u-devs")
	devChannelID, _ := ref.ParseChannelID("c-dev")
	devsAliasID, _ := ref.ParseAliasID("a-devs")
	return Directory{
		Users: []User{
			{ID: aliceID, Username: "alice"},
			// Username colliding with the alias group below.
			{ID: devsUserID, Username: "devs"},
		},
		Channels: []Channel{
			{ID: devChannelID, Name: "dev"},
		},
		Aliases: []Alias{
			{ID: devsAliasID, Name: "devs"},
		},
	}
}

func TestResolveRoundTrip(t *testing.T) {
	directory := testDirectory(t)
	inputs := []string{
		"",
		"plain text only",
		"@alice hello",
		"hello @alice",
		"@alice@unknown #dev `@alice` and ```\n@devs\n``` trailing",
		"@here everyone, see #dev and ask @devs or @nobody",
		"  leading space @alice  ",
	}
	for _, input := range inputs {
		spans := Resolve(input, directory)
		if got := span.Text(spans); got != input {
			t.Errorf("round trip failed:\n input: %q\noutput: %q", input, got)
		}
	}
}

func TestResolveAliasPrecedence(t *testing.T) {
	spans := Resolve("@devs", testDirectory(t))
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Type != span.AliasMention {
		t.Errorf("type = %s, want alias mention over colliding username", spans[0].Type)
	}
	if spans[0].AliasID.String() != "a-devs" {
		t.Errorf("aliasId = %s", spans[0].AliasID)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	spans := Resolve("@ALICE and #DEV", testDirectory(t))
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3: %+v", len(spans), spans)
	}
	if spans[0].Type != span.UserMention || spans[0].Text != "@ALICE" {
		t.Errorf("span 0 = %+v", spans[0])
	}
	if spans[2].Type != span.CommunityMention || spans[2].Text != "#DEV" {
		t.Errorf("span 2 = %+v", spans[2])
	}
}

func TestResolveUnknownDegradesToPlaintext(t *testing.T) {
	spans := Resolve("@unknown", testDirectory(t))
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Type != span.Plaintext || spans[0].Text != "@unknown" {
		t.Errorf("span = %+v, want literal plaintext", spans[0])
	}

	spans = Resolve("#nochannel", testDirectory(t))
	if len(spans) != 1 || spans[0].Type != span.Plaintext || spans[0].Text != "#nochannel" {
		t.Errorf("unresolved channel = %+v, want literal plaintext", spans)
	}
}

func TestResolveSpecialWithoutDirectory(t *testing.T) {
	spans := Resolve("@here", Directory{})
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Type != span.SpecialMention || spans[0].SpecialKind != span.Here {
		t.Errorf("span = %+v", spans[0])
	}
}

func TestResolveGapSpans(t *testing.T) {
	spans := Resolve("hi @alice bye", testDirectory(t))
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3: %+v", len(spans), spans)
	}
	if spans[0].Type != span.Plaintext || spans[0].Text != "hi " {
		t.Errorf("leading gap = %+v", spans[0])
	}
	if spans[1].Type != span.UserMention {
		t.Errorf("mention = %+v", spans[1])
	}
	if spans[2].Type != span.Plaintext || spans[2].Text != " bye" {
		t.Errorf("trailing gap = %+v", spans[2])
	}
}

func TestResolveAdjacentMentionsNoGap(t *testing.T) {
	// Zero-length gaps between adjacent mentions are omitted.
	spans := Resolve("@alice#dev", testDirectory(t))
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(spans), spans)
	}
	if span.Text(spans) != "@alice#dev" {
		t.Errorf("round trip = %q", span.Text(spans))
	}
}

func TestResolvePlainTextOnly(t *testing.T) {
	spans := Resolve("no mentions here at all", Directory{})
	if len(spans) != 1 || spans[0].Type != span.Plaintext {
		t.Fatalf("spans = %+v, want single plaintext", spans)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	if spans := Resolve("", Directory{}); len(spans) != 0 {
		t.Errorf("Resolve(\"\") = %+v, want none", spans)
	}
}

func TestNotifies(t *testing.T) {
	selfID, _ := ref.ParseUserID("u-me")
	otherID, _ := ref.ParseUserID("u-other")
	aliasID, _ := ref.ParseAliasID("a-devs")

	memberOfDevs := func(id ref.AliasID) bool { return id == aliasID }

	if !Notifies([]span.Span{span.NewSpecial("@here", span.Here)}, selfID, nil) {
		t.Error("special mention should notify every viewer")
	}
	if !Notifies([]span.Span{span.NewUser("@me", selfID)}, selfID, nil) {
		t.Error("direct mention should notify")
	}
	if Notifies([]span.Span{span.NewUser("@other", otherID)}, selfID, nil) {
		t.Error("mention of someone else should not notify")
	}
	if !Notifies([]span.Span{span.NewAlias("@devs", aliasID)}, selfID, memberOfDevs) {
		t.Error("alias mention should notify members")
	}
	if Notifies([]span.Span{span.NewAlias("@devs", aliasID)}, selfID, nil) {
		t.Error("alias mention should not notify non-members")
	}
	if Notifies([]span.Span{span.NewPlaintext("hi")}, selfID, nil) {
		t.Error("plaintext should not notify")
	}
}
