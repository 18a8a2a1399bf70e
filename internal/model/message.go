// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/querychat/internal/util"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Text string `json:"text"`

	// Query is the backend-generated query that produced this answer.
	Query string `json:"query,omitempty"`

	// RawData holds the result rows exactly as the backend returned them.
	// Export and record navigation read from it.
	RawData json.RawMessage `json:"raw_data,omitempty"`

	// Derived display fields
	Headers []string    `json:"headers,omitempty"`
	Rows    [][]string  `json:"rows,omitempty"`
	Count   *int64      `json:"count,omitempty"`
	Kind    DisplayKind `json:"kind,omitempty"`

	// IsError marks a bot message that reports a failed request.
	IsError bool `json:"is_error,omitempty"`

	// Expanded is a UI toggle: show every table row instead of a preview.
	Expanded bool `json:"expanded,omitempty"`
}

// NewUserMessage creates a message typed by the user.
func NewUserMessage(text string) *Message {
	return &Message{
		ID:        generateID(),
		Sender:    SenderUser,
		Timestamp: time.Now(),
		Text:      text,
	}
}

// NewBotMessage creates a plain-text bot message.
func NewBotMessage(text string) *Message {
	return &Message{
		ID:        generateID(),
		Sender:    SenderBot,
		Timestamp: time.Now(),
		Text:      text,
		Kind:      KindText,
	}
}

// NewSummaryMessage creates a bot message rendered as a summary.
func NewSummaryMessage(summary string) *Message {
	msg := NewBotMessage(summary)
	msg.Kind = KindSummary
	return msg
}

// NewCountMessage creates a bot message rendered as a count.
func NewCountMessage(text string, count int64) *Message {
	msg := NewBotMessage(text)
	msg.Kind = KindCount
	msg.Count = &count
	return msg
}

// NewTableMessage creates a bot message rendered as a table.
func NewTableMessage(text string, headers []string, rows [][]string, raw json.RawMessage) *Message {
	msg := NewBotMessage(text)
	msg.Kind = KindTable
	msg.Headers = headers
	msg.Rows = rows
	msg.RawData = raw
	return msg
}

// NewErrorMessage creates a bot message describing a failed request.
func NewErrorMessage(text string) *Message {
	msg := NewBotMessage(text)
	msg.IsError = true
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Errors returned by Validate.
var (
	ErrKindMismatch = errors.New("message fields do not match display kind")
	ErrUnknownKind  = errors.New("unknown display kind")
)

// Validate checks that the rendering fields match the declared kind.
func (m *Message) Validate() error {
	if m.Sender == SenderUser {
		if m.Kind != KindNone || m.Count != nil || len(m.Headers) > 0 || len(m.Rows) > 0 {
			return fmt.Errorf("%w: user message carries bot fields", ErrKindMismatch)
		}
		return nil
	}

	switch m.Kind {
	case KindTable:
		if len(m.Headers) == 0 {
			return fmt.Errorf("%w: table without headers", ErrKindMismatch)
		}
		for i, row := range m.Rows {
			if len(row) != len(m.Headers) {
				return fmt.Errorf("%w: row %d has %d cells, want %d", ErrKindMismatch, i+1, len(row), len(m.Headers))
			}
		}
		if m.Count != nil {
			return fmt.Errorf("%w: table carries a count", ErrKindMismatch)
		}
	case KindCount:
		if m.Count == nil {
			return fmt.Errorf("%w: count message without count", ErrKindMismatch)
		}
		if len(m.Headers) > 0 || len(m.Rows) > 0 {
			return fmt.Errorf("%w: count message carries table fields", ErrKindMismatch)
		}
	case KindSummary, KindText:
		if m.Text == "" {
			return fmt.Errorf("%w: %s message without text", ErrKindMismatch, m.Kind)
		}
		if m.Count != nil || len(m.Headers) > 0 || len(m.Rows) > 0 {
			return fmt.Errorf("%w: %s message carries table or count fields", ErrKindMismatch, m.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return nil
}

// ToggleExpanded flips the table expansion flag and returns the new value.
func (m *Message) ToggleExpanded() bool {
	m.Expanded = !m.Expanded
	return m.Expanded
}

// IsTable reports whether the message renders as a table.
func (m *Message) IsTable() bool {
	return m.Kind == KindTable
}

// RowCount returns the number of table rows.
func (m *Message) RowCount() int {
	return len(m.Rows)
}

// Preview returns a single-line, rune-safe preview of the message text.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.SingleLine(m.Text), maxLen)
}

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
