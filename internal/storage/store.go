// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/querychat/internal/model"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists a single conversation history.
type Store interface {
	// Load returns the stored history. A missing history loads empty.
	Load(ctx context.Context) (*model.Conversation, error)

	// Save replaces the stored history. It may trim conv to fit the quota.
	Save(ctx context.Context, conv *model.Conversation) error

	// Clear removes the stored history.
	Clear(ctx context.Context) error

	// Changed reports whether the stored history differs from what this
	// store last loaded or saved, i.e. another process wrote it.
	Changed(ctx context.Context) (bool, error)

	// Path returns the file backing the store.
	Path() string

	// Close releases resources held by the store.
	Close() error
}

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultQuotaBytes bounds the serialized history size.
const DefaultQuotaBytes int64 = 5 * 1024 * 1024

// Options configures NewStore.
type Options struct {
	// Backend is "file" or "sqlite". Default: "file".
	Backend string

	// Dir is the directory holding the history.
	// Default: ~/.querychat
	Dir string

	// QuotaBytes bounds the serialized history; 0 disables the check.
	QuotaBytes int64
}

// NewStore opens the store selected by opts.Backend.
func NewStore(opts Options) (Store, error) {
	dir := opts.Dir
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, HistoryFileName), opts.QuotaBytes)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, HistoryDBName), opts.QuotaBytes)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// DefaultDir returns ~/.querychat.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".querychat"), nil
}

// =============================================================================
// QUOTA
// =============================================================================

// fitQuota serializes conv and applies the quota.
//
// When the document is too large, a trimmed copy holding the newest
// model.MaxStoredMessages is tried. The returned conversation is the one
// that fits; conv itself is not modified.
func fitQuota(conv *model.Conversation, quota int64) (*model.Conversation, []byte, error) {
	data, err := encode(conv)
	if err != nil {
		return nil, nil, err
	}
	if quota <= 0 || int64(len(data)) <= quota {
		return conv, data, nil
	}

	trimmed := conv.Clone()
	if trimmed.TrimTo(model.MaxStoredMessages) == 0 {
		return nil, nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrQuotaExceeded, len(data), quota)
	}

	data, err = encode(trimmed)
	if err != nil {
		return nil, nil, err
	}
	if int64(len(data)) > quota {
		return nil, nil, fmt.Errorf("%w: %d bytes after trimming (limit %d)", ErrQuotaExceeded, len(data), quota)
	}
	return trimmed, data, nil
}

// applyTrim mirrors a trimmed save into the caller's conversation.
func applyTrim(conv, stored *model.Conversation) {
	if stored != conv {
		conv.Messages = stored.Messages
	}
}

func encode(conv *model.Conversation) ([]byte, error) {
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrQuotaExceeded is returned when the history does not fit the quota
	// even after trimming. Use errors.Is(err, ErrQuotaExceeded).
	ErrQuotaExceeded = &StoreError{Message: "storage quota exceeded"}

	// ErrUnknownBackend is returned by NewStore for an unsupported backend.
	ErrUnknownBackend = &StoreError{Message: "unknown storage backend"}

	// ErrClosed is returned when using a closed store.
	ErrClosed = &StoreError{Message: "store is closed"}
)

// StoreError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
