// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxStoredMessages is the number of newest messages kept when the history
// no longer fits in its storage quota.
const MaxStoredMessages = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered, append-only sequence of messages.
type Conversation struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(msg *Message) {
	if msg == nil {
		return
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Last returns the most recent message, or nil if empty.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// LastBot returns the most recent bot message, or nil.
func (c *Conversation) LastBot() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == SenderBot {
			return c.Messages[i]
		}
	}
	return nil
}

// LastTable returns the most recent table message, or nil.
func (c *Conversation) LastTable() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsTable() {
			return c.Messages[i]
		}
	}
	return nil
}

// Get returns the message at a 1-based position, or nil when out of range.
func (c *Conversation) Get(pos int) *Message {
	if pos < 1 || pos > len(c.Messages) {
		return nil
	}
	return c.Messages[pos-1]
}

// FindByID returns a message by its ID.
func (c *Conversation) FindByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// Clear removes all messages.
func (c *Conversation) Clear() {
	c.Messages = make([]*Message, 0)
	c.UpdatedAt = time.Now()
}

// TrimTo keeps only the newest n messages and reports how many were dropped.
func (c *Conversation) TrimTo(n int) int {
	if n < 0 {
		n = 0
	}
	if len(c.Messages) <= n {
		return 0
	}
	dropped := len(c.Messages) - n
	kept := make([]*Message, n)
	copy(kept, c.Messages[dropped:])
	c.Messages = kept
	return dropped
}

// Clone returns a shallow copy whose message slice can be trimmed
// independently of the original.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
