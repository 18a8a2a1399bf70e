// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
)

const (
	// storeTimeout bounds a single history load or save.
	storeTimeout = 3 * time.Second

	// statusTTL is how long a transient status line stays visible.
	statusTTL = 4 * time.Second
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// askCmd sends one question to the backend.
func askCmd(ctx context.Context, client Asker, id int, req query.Request) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		if client == nil {
			return AnswerMsg{RequestID: id, Err: query.ErrNotConfigured}
		}
		resp, err := client.Ask(ctx, req)
		return AnswerMsg{
			RequestID: id,
			Response:  resp,
			Err:       err,
			Elapsed:   time.Since(start),
		}
	}
}

// loadHistoryCmd restores the stored conversation.
func loadHistoryCmd(store storage.Store, external bool) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		conv, err := store.Load(ctx)
		return HistoryLoadedMsg{Conversation: conv, Err: err, External: external}
	}
}

// watchCmd waits for the next watcher event. It is re-issued after every
// event it delivers.
func watchCmd(w *storage.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case _, ok := <-w.Changes():
			if !ok {
				return nil
			}
			return HistoryChangedMsg{}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			return WatchErrorMsg{Err: err}
		}
	}
}

// clearStatusCmd expires the status line identified by seq.
func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return StatusClearMsg{Seq: seq}
	})
}

// =============================================================================
// KEY HANDLING
// =============================================================================

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m.quit()

	case key.Matches(msg, m.keyMap.Close):
		if m.panel != panelNone {
			m.closePanel()
			return m, nil
		}
		return m.quit()

	case key.Matches(msg, m.keyMap.Help):
		if m.panel == panelHelp {
			m.closePanel()
		} else {
			m.showHelp()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keyMap.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keyMap.Expand):
		return m, m.toggleExpand(0)

	case key.Matches(msg, m.keyMap.Export):
		return m, m.startExport("")

	case key.Matches(msg, m.keyMap.Clear):
		return m, m.clearConversation()

	case key.Matches(msg, m.keyMap.Copy):
		return m, m.copyLastAnswer()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// quit cancels any pending request and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	return m, tea.Quit
}

// =============================================================================
// SUBMISSION
// =============================================================================

// submit sends the input as a question, or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		return m.handleCommand(text)
	}

	if m.state == StateWaiting {
		return m, m.setStatus("Still waiting for the previous answer", true)
	}

	m.input.Reset()

	m.conversation.Append(model.NewUserMessage(text))
	saveCmd := m.persist()
	m.updateViewport()
	m.viewport.GotoBottom()

	m.requestID++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateWaiting
	m.pendingStart = time.Now()

	req := query.Request{Query: text, ConversationID: m.conversation.ID}
	return m, tea.Batch(
		askCmd(ctx, m.client, m.requestID, req),
		m.spinner.Tick,
		saveCmd,
	)
}

// handleAnswer appends the backend answer, or an error message.
func (m Model) handleAnswer(msg AnswerMsg) (tea.Model, tea.Cmd) {
	if msg.RequestID != m.requestID || m.state != StateWaiting {
		return m, nil
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateReady

	var reply *model.Message
	if msg.Err != nil {
		log.Printf("[chat] request %d failed after %s: %v", msg.RequestID, msg.Elapsed, msg.Err)
		reply = format.BuildErrorMessage(msg.Err)
	} else {
		reply = format.BuildBotMessage(msg.Response)
		log.Printf("[chat] request %d answered in %s (%s)", msg.RequestID, msg.Elapsed, reply.Kind)
	}

	m.conversation.Append(reply)
	saveCmd := m.persist()
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, saveCmd
}

// =============================================================================
// HISTORY
// =============================================================================

// handleHistoryLoaded installs a restored conversation.
//
// The initial load may arrive after the user has already asked something;
// the restored messages then go first and the new ones follow. A load
// triggered by another process replaces the conversation outright.
func (m Model) handleHistoryLoaded(msg HistoryLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		log.Printf("[chat] load history: %v", msg.Err)
		return m, m.setStatus("Could not load history: "+msg.Err.Error(), true)
	}
	if msg.Conversation == nil {
		return m, nil
	}

	if msg.External || m.conversation.IsEmpty() {
		m.conversation.ID = msg.Conversation.ID
		m.conversation.CreatedAt = msg.Conversation.CreatedAt
		m.conversation.UpdatedAt = msg.Conversation.UpdatedAt
		m.conversation.Messages = msg.Conversation.Messages
		m.updateViewport()
		m.viewport.GotoBottom()
		if msg.External {
			return m, m.setStatus("History reloaded", false)
		}
		return m, nil
	}

	merged := mergeHistory(msg.Conversation, m.conversation)
	m.conversation.ID = merged.ID
	m.conversation.CreatedAt = merged.CreatedAt
	m.conversation.Messages = merged.Messages
	saveCmd := m.persist()
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, saveCmd
}

// handleHistoryChanged reloads after another process wrote the history.
func (m Model) handleHistoryChanged() (tea.Model, tea.Cmd) {
	return m, tea.Batch(loadHistoryCmd(m.store, true), watchCmd(m.watcher))
}

// mergeHistory appends the messages of current that stored lacks.
func mergeHistory(stored, current *model.Conversation) *model.Conversation {
	merged := stored.Clone()
	for _, msg := range current.Messages {
		if merged.FindByID(msg.ID) == nil {
			merged.Append(msg)
		}
	}
	return merged
}

// persist saves the conversation. Saving happens on the update goroutine
// because a save may trim the conversation to fit the quota.
func (m *Model) persist() tea.Cmd {
	if m.store == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := m.store.Save(ctx, m.conversation); err != nil {
		log.Printf("[chat] save history: %v", err)
		if errors.Is(err, storage.ErrQuotaExceeded) {
			return m.setStatus("History is over the storage quota and was not saved", true)
		}
		return m.setStatus("Could not save history: "+err.Error(), true)
	}
	return nil
}

// =============================================================================
// EXPORT AND NAVIGATION RESULTS
// =============================================================================

// handleExportComplete reports where an export was written.
func (m Model) handleExportComplete(msg ExportCompleteMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		log.Printf("[chat] export %s: %v", msg.Format, msg.Err)
		return m, m.setStatus("Export failed: "+msg.Err.Error(), true)
	}
	log.Printf("[chat] exported %s to %s", msg.Format, msg.Path)
	return m, m.setStatus("Exported to "+msg.Path, false)
}

// handleOpenComplete reports the result of opening a record link.
func (m Model) handleOpenComplete(msg OpenCompleteMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.setStatus(fmt.Sprintf("Could not open %s: %v", msg.URL, msg.Err), true)
	}
	return m, m.setStatus("Opened "+msg.URL, false)
}

// =============================================================================
// LAYOUT AND STATUS
// =============================================================================

// handleResize adapts the layout to a new terminal size.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.input.Width = max(msg.Width-4, 10)
	m.help.Width = msg.Width
	m.layout()
	m.updateViewport()
	return m, nil
}

// setStatus shows a transient status line and schedules its removal.
func (m *Model) setStatus(text string, isError bool) tea.Cmd {
	m.statusSeq++
	m.statusMsg = text
	m.statusError = isError
	return clearStatusCmd(m.statusSeq)
}

// updateViewport re-renders the messages into the viewport.
func (m *Model) updateViewport() {
	m.viewport.SetContent(m.renderMessages())
}

// showPanel opens a titled panel above the input.
func (m *Model) showPanel(kind panelKind, title, body string) {
	m.panel = kind
	m.panelTitle = title
	m.panelBody = body
	m.layout()
}

// closePanel hides the panel.
func (m *Model) closePanel() {
	m.panel = panelNone
	m.panelTitle = ""
	m.panelBody = ""
	m.layout()
}
