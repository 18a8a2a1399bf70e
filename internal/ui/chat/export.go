// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/model"
)

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// startExport writes the conversation in the given format, or the
// configured default when format is empty. Table formats need a table
// result; transcript formats take the whole conversation.
func (m *Model) startExport(format string) tea.Cmd {
	if format == "" {
		format = m.cfg.Export.DefaultFormat
	}
	if m.conversation.IsEmpty() {
		return m.setStatus("Nothing to export yet", true)
	}

	opts := export.DefaultOptions()
	opts.OutputDir = m.cfg.Export.OutputDir
	opts.OpenAfterExport = m.cfg.Export.OpenAfterExport
	opts.IncludeQuery = m.showQuery

	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return m.setStatus("Unknown export format "+format+". Use "+strings.Join(export.Formats(), ", "), true)
	}
	if _, ok := exp.(export.TableExporter); ok && m.conversation.LastTable() == nil {
		return m.setStatus("No table result to export. Try /export md for the transcript.", true)
	}

	status := m.setStatus("Exporting "+strings.ToLower(format)+"...", false)
	return tea.Batch(status, exportCmd(m.conversation.Clone(), exp, opts, format))
}

// exportCmd runs an export off the update goroutine on a snapshot of the
// conversation.
func exportCmd(conv *model.Conversation, exp export.Exporter, opts *export.Options, format string) tea.Cmd {
	return func() tea.Msg {
		path, err := export.ExportToFile(conv, exp, opts)
		return ExportCompleteMsg{Path: path, Format: format, Err: err}
	}
}
