// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
)

// =============================================================================
// QUERY MESSAGES
// =============================================================================

// AnswerMsg delivers the backend answer for a submitted question.
type AnswerMsg struct {
	// RequestID matches the pending request; stale answers are dropped.
	RequestID int
	Response  *query.Response
	Err       error
	Elapsed   time.Duration
}

// =============================================================================
// HISTORY MESSAGES
// =============================================================================

// HistoryLoadedMsg carries the conversation restored from the store.
type HistoryLoadedMsg struct {
	Conversation *model.Conversation
	Err          error

	// External is set when the load follows a change made by another
	// process; the stored history then replaces the one on screen.
	External bool
}

// HistoryChangedMsg signals that another process rewrote the history.
type HistoryChangedMsg struct{}

// WatchErrorMsg reports a failure from the history watcher.
type WatchErrorMsg struct {
	Err error
}

// =============================================================================
// EXPORT AND NAVIGATION MESSAGES
// =============================================================================

// ExportCompleteMsg reports the result of an export.
type ExportCompleteMsg struct {
	Path   string
	Format string
	Err    error
}

// OpenCompleteMsg reports the result of opening a record link.
type OpenCompleteMsg struct {
	URL string
	Err error
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// StatusClearMsg clears a transient status line if it is still current.
type StatusClearMsg struct {
	Seq int
}
