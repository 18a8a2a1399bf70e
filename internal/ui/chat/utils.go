// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/navigate"
)

// Replaced in tests.
var (
	writeClipboard = clipboard.WriteAll
	openURL        = navigate.Open
)

// copyText is the clipboard form of a message. Tables become tab-separated
// rows so they paste into spreadsheets.
func copyText(msg *model.Message) string {
	if !msg.IsTable() || len(msg.Headers) == 0 {
		return msg.Text
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(msg.Headers, "\t"))
	for _, row := range msg.Rows {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(row, "\t"))
	}
	return sb.String()
}

// formatTimestamp formats a message time relative to now.
func formatTimestamp(t time.Time) string {
	return formatTimestampAt(t, time.Now())
}

func formatTimestampAt(t, now time.Time) string {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	switch {
	case y1 == y2 && m1 == m2 && d1 == d2:
		return t.Format("15:04")
	case now.Sub(t) < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	default:
		return t.Format("Jan 2 15:04")
	}
}
