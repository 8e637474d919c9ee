// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/parley-chat/parley/lib/codec"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/message"
)

// snapshotVersion guards the on-disk format. A version mismatch on
// load discards the snapshot; the cache refetches from the server, so
// nothing of value is lost.
const snapshotVersion = 1

// snapshot is the serialized form of a Store's durable state: loaded
// pages, continuation tokens, and unread records. Typing indicators
// and in-flight loading states are transient and not persisted.
type snapshot struct {
	Version       int                    `json:"version"`
	Conversations []conversationSnapshot `json:"conversations"`
	Unread        []unreadSnapshot       `json:"unread"`
}

type conversationSnapshot struct {
	Conversation ref.Conversation    `json:"conversation"`
	Pages        [][]message.Message `json:"pages"`
	Token        string              `json:"token,omitempty"`
}

type unreadSnapshot struct {
	Conversation ref.Conversation `json:"conversation"`
	Record       Unread           `json:"record"`
}

// SaveSnapshot writes the store's durable state to path as
// zstd-compressed CBOR, atomically: the bytes land in a temp file in
// the same directory and replace path with a rename.
func (s *Store) SaveSnapshot(path string) error {
	snap := s.buildSnapshot()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cache: creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: creating snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	compressor, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("cache: initializing compressor: %w", err)
	}
	if err := codec.NewEncoder(compressor).Encode(snap); err != nil {
		compressor.Close()
		tmp.Close()
		return fmt.Errorf("cache: encoding snapshot: %w", err)
	}
	if err := compressor.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: flushing compressor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cache: installing snapshot: %w", err)
	}
	return nil
}

// buildSnapshot captures durable state under the lock.
func (s *Store) buildSnapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{Version: snapshotVersion}
	for conversation, ent := range s.entries {
		if ent.state != StateLoaded {
			continue
		}
		pages := make([][]message.Message, len(ent.pages))
		for i, page := range ent.pages {
			pages[i] = append([]message.Message(nil), page...)
		}
		snap.Conversations = append(snap.Conversations, conversationSnapshot{
			Conversation: conversation,
			Pages:        pages,
			Token:        ent.token,
		})
	}
	for conversation, record := range s.unread {
		snap.Unread = append(snap.Unread, unreadSnapshot{
			Conversation: conversation,
			Record:       record,
		})
	}
	return snap
}

// LoadSnapshot restores durable state from path. Restored entries come
// back Loaded but stale, so the caller refetches each conversation and
// the snapshot only bridges the gap until fresh pages arrive. A
// missing file is not an error; a corrupt or version-mismatched file
// is.
func (s *Store) LoadSnapshot(path string) error {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: opening snapshot: %w", err)
	}
	defer file.Close()

	decompressor, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("cache: initializing decompressor: %w", err)
	}
	defer decompressor.Close()

	var snap snapshot
	if err := codec.NewDecoder(decompressor).Decode(&snap); err != nil {
		return fmt.Errorf("cache: decoding snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("cache: snapshot version %d, want %d", snap.Version, snapshotVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range snap.Conversations {
		ent := &entry{
			state: StateLoaded,
			pages: conv.Pages,
			token: conv.Token,
			stale: true,
		}
		s.entries[conv.Conversation] = ent
		for _, page := range conv.Pages {
			for _, msg := range page {
				s.index.Record(msg.ID, conv.Conversation)
			}
		}
	}
	for _, unread := range snap.Unread {
		s.unread[unread.Conversation] = unread.Record
	}
	return nil
}
