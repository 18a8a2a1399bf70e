// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/util"
)

// HistoryFileName is the JSON history document.
const HistoryFileName = "history.json"

// corruptSuffix is appended to a history file that could not be parsed.
const corruptSuffix = ".corrupt"

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the history as one JSON document.
type FileStore struct {
	path       string
	quotaBytes int64

	mu       sync.Mutex
	lastHash string
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string, quotaBytes int64) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	return &FileStore{path: path, quotaBytes: quotaBytes}, nil
}

// Path returns the history file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the history. A missing file loads as an empty conversation.
// An unreadable document is moved aside and also loads empty.
func (s *FileStore) Load(ctx context.Context) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.lastHash = ""
			return model.NewConversation(), nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	conv, err := decodeConversation(data)
	if err != nil {
		aside := s.path + corruptSuffix
		log.Printf("[storage] history %s is unreadable (%v), moving it to %s", s.path, err, aside)
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return nil, fmt.Errorf("move corrupt history aside: %w", rerr)
		}
		s.lastHash = ""
		return model.NewConversation(), nil
	}

	s.lastHash = hashBytes(data)
	return conv, nil
}

// Save writes the history atomically, trimming it to fit the quota.
// On ErrQuotaExceeded the previous document is left untouched.
func (s *FileStore) Save(ctx context.Context, conv *model.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation is nil")
	}

	stored, data, err := fitQuota(conv, s.quotaBytes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	s.lastHash = hashBytes(data)

	if dropped := len(conv.Messages) - len(stored.Messages); dropped > 0 {
		log.Printf("[storage] history over quota, dropped %d oldest messages", dropped)
	}
	applyTrim(conv, stored)
	return nil
}

// Clear removes the history file.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove history: %w", err)
	}
	s.lastHash = ""
	return nil
}

// Changed reports whether the file no longer holds what this store last
// read or wrote.
func (s *FileStore) Changed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.lastHash != "", nil
		}
		return false, fmt.Errorf("read history: %w", err)
	}
	return hashBytes(data) != s.lastHash, nil
}

// Close is a no-op for file stores.
func (s *FileStore) Close() error {
	return nil
}

// decodeConversation parses a history document and fills missing fields.
func decodeConversation(data []byte) (*model.Conversation, error) {
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}

	kept := make([]*model.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if msg != nil {
			kept = append(kept, msg)
		}
	}
	conv.Messages = kept

	if conv.ID == "" {
		conv.ID = model.NewConversation().ID
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	return &conv, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
