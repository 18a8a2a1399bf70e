// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// DISPLAY KIND
// =============================================================================

// DisplayKind classifies a bot answer and selects its renderer.
type DisplayKind string

const (
	KindNone    DisplayKind = ""
	KindTable   DisplayKind = "table"
	KindCount   DisplayKind = "count"
	KindSummary DisplayKind = "summary"
	KindText    DisplayKind = "text"
)

// String returns the string representation of the kind.
func (k DisplayKind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// IsValid reports whether k is one of the renderable kinds.
func (k DisplayKind) IsValid() bool {
	switch k {
	case KindTable, KindCount, KindSummary, KindText:
		return true
	}
	return false
}

// ParseDisplayKind parses a kind name, case-insensitively.
func ParseDisplayKind(s string) (DisplayKind, error) {
	k := DisplayKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return KindNone, fmt.Errorf("unknown display kind %q", s)
	}
	return k, nil
}

// =============================================================================
// SENDER
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Assistant"
	default:
		return string(s)
	}
}
