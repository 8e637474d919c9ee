// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parley-chat/parley/event"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/message"
)

func TestSnapshotRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	conversation := channelConv(t, "c1")
	store.CompleteLoad(conversation, []message.Message{
		channelMessage(t, "m2", "other", "c1"),
		channelMessage(t, "m1", "other", "c1"),
	}, "tok-1")
	store.Apply(&event.NewMessage{Message: channelMessage(t, "m3", "other", "c1")})

	path := filepath.Join(t.TempDir(), "cache.snapshot")
	if err := store.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	restored, _ := newTestStore(t)
	if err := restored.LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	got := messageIDs(restored.Messages(conversation))
	if len(got) != 3 || got[0] != "m3" || got[1] != "m2" || got[2] != "m1" {
		t.Errorf("messages = %v, want [m3 m2 m1]", got)
	}
	token, ok := restored.ContinuationToken(conversation)
	if !ok || token != "tok-1" {
		t.Errorf("token = %q, %v, want tok-1", token, ok)
	}
	if count := restored.UnreadCount(conversation); count != 1 {
		t.Errorf("unread = %d, want 1", count)
	}
	if !restored.Stale(conversation) {
		t.Error("restored entries should be stale until refetched")
	}

	// The index is rebuilt, so message-only events route again.
	messageID, _ := ref.ParseMessageID("m1")
	if _, ok := restored.Index().Lookup(messageID); !ok {
		t.Error("index not rebuilt from snapshot")
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.LoadSnapshot(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("missing snapshot should not be an error: %v", err)
	}
}

func TestLoadSnapshotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.snapshot")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o600); err != nil {
		t.Fatal(err)
	}
	store, _ := newTestStore(t)
	if err := store.LoadSnapshot(path); err == nil {
		t.Error("corrupt snapshot should be an error")
	}
}

func TestSaveSnapshotCreatesDirectory(t *testing.T) {
	store, _ := newTestStore(t)
	store.CompleteLoad(channelConv(t, "c1"), nil, "")

	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.snapshot")
	if err := store.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot file not written: %v", err)
	}
}
