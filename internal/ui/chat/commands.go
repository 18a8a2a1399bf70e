// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/navigate"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command. It receives the model and the
// command arguments.
type CommandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

// commandHandlers maps command names to their handler functions.
var commandHandlers = map[string]CommandHandler{
	// Help & Meta
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,
	"quit": handleQuitCommand,
	"q":    handleQuitCommand,
	"exit": handleQuitCommand,

	// Conversation
	"clear":  handleClearCommand,
	"export": handleExportCommand,
	"e":      handleExportCommand,
	"copy":   handleCopyCommand,

	// Results
	"expand": handleExpandCommand,
	"x":      handleExpandCommand,
	"open":   handleOpenCommand,
	"o":      handleOpenCommand,
	"query":  handleQueryCommand,
	"sql":    handleQueryCommand,
}

// commandHelp describes the commands for the help panel. It is kept apart
// from commandHandlers because the help handler reads it.
var commandHelp = []struct {
	Usage       string
	Description string
}{
	{"/help", "Show commands and keys"},
	{"/clear", "Clear the conversation and stored history"},
	{"/export [xlsx|csv|md|json]", "Export the last table, or the transcript"},
	{"/expand [n]", "Show all rows of table #n (default: last table)"},
	{"/open <row> [column]", "Open a record of the last table"},
	{"/copy", "Copy the last answer to the clipboard"},
	{"/query", "Show the query behind the last answer"},
	{"/quit", "Exit"},
}

// handleCommand runs a slash command.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	m.input.Reset()

	name, args := parseCommand(content)
	if name == "" {
		return m, nil
	}

	if handler, ok := commandHandlers[name]; ok {
		return handler(&m, args)
	}
	return m, m.setStatus(fmt.Sprintf("Unknown command /%s. Type /help for commands.", name), true)
}

// parseCommand splits "/name arg..." into a lower-case name and arguments.
func parseCommand(content string) (string, []string) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return "", nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	return name, parts[1:]
}

// =============================================================================
// HELP AND META COMMANDS
// =============================================================================

func handleHelpCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	m.showHelp()
	return *m, nil
}

func handleQuitCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	return m.quit()
}

// showHelp opens the help panel.
func (m *Model) showHelp() {
	var sb strings.Builder
	width := 0
	for _, c := range commandHelp {
		width = max(width, len(c.Usage))
	}
	for _, c := range commandHelp {
		sb.WriteString(m.theme.ShortcutKey.Render(fmt.Sprintf("%-*s", width, c.Usage)))
		sb.WriteString("  ")
		sb.WriteString(m.theme.ShortcutDesc.Render(c.Description))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.FullHelpView(m.keyMap.FullHelp()))

	m.showPanel(panelHelp, "Help", sb.String())
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func handleClearCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	return *m, m.clearConversation()
}

func handleExportCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	return *m, m.startExport(format)
}

func handleCopyCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	return *m, m.copyLastAnswer()
}

// clearConversation empties the conversation and the stored history.
func (m *Model) clearConversation() tea.Cmd {
	if m.state == StateWaiting {
		return m.setStatus("Wait for the answer before clearing", true)
	}

	m.conversation.Clear()
	m.closePanel()
	m.updateViewport()
	m.viewport.GotoTop()

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := m.store.Clear(ctx); err != nil {
			return m.setStatus("Could not clear stored history: "+err.Error(), true)
		}
	}
	return m.setStatus("Conversation cleared", false)
}

// copyLastAnswer copies the newest bot answer to the clipboard.
func (m *Model) copyLastAnswer() tea.Cmd {
	msg := m.conversation.LastBot()
	if msg == nil {
		return m.setStatus("Nothing to copy yet", true)
	}
	if err := writeClipboard(copyText(msg)); err != nil {
		return m.setStatus("Clipboard unavailable: "+err.Error(), true)
	}
	return m.setStatus("Copied last answer", false)
}

// =============================================================================
// RESULT COMMANDS
// =============================================================================

func handleExpandCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	pos := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
		if err != nil || n < 1 {
			return *m, m.setStatus("Usage: /expand [n], where n is a message number", true)
		}
		pos = n
	}
	return *m, m.toggleExpand(pos)
}

// toggleExpand flips the expanded state of message #pos, or of the last
// table when pos is 0.
func (m *Model) toggleExpand(pos int) tea.Cmd {
	var msg *model.Message
	if pos > 0 {
		msg = m.conversation.Get(pos)
		if msg == nil {
			return m.setStatus(fmt.Sprintf("There is no message #%d", pos), true)
		}
	} else {
		msg = m.conversation.LastTable()
	}
	if msg == nil || !msg.IsTable() {
		return m.setStatus("No table to expand", true)
	}

	expanded := msg.ToggleExpanded()
	saveCmd := m.persist()
	m.updateViewport()

	state := "Collapsed"
	if expanded {
		state = "Expanded"
	}
	return tea.Batch(saveCmd, m.setStatus(fmt.Sprintf("%s table (%d rows)", state, msg.RowCount()), false))
}

func handleOpenCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return *m, m.setStatus("Usage: /open <row> [column]", true)
	}
	row, err := strconv.Atoi(args[0])
	if err != nil {
		return *m, m.setStatus("Row must be a number", true)
	}
	column := strings.Join(args[1:], " ")
	return *m, m.openRecord(row, column)
}

// openRecord follows a cell of the last table: to its detail link when a
// template is configured, otherwise to a detail panel.
func (m *Model) openRecord(row int, column string) tea.Cmd {
	target, err := navigate.Resolve(m.conversation.LastTable(), row, column)
	if err != nil {
		if errors.Is(err, navigate.ErrNotTable) {
			return m.setStatus("No table to open a record from", true)
		}
		return m.setStatus(err.Error(), true)
	}

	if tmpl := m.cfg.UI.DetailURLTemplate; tmpl != "" {
		link, err := navigate.Link(tmpl, target)
		if err != nil {
			return m.setStatus(err.Error(), true)
		}
		return openCmd(link)
	}

	title := fmt.Sprintf("Row %d  %s: %s", target.Row, target.Header, target.DisplayValue())
	m.showPanel(panelDetail, title, navigate.Detail(target.Record))
	return nil
}

// openCmd hands a link to the system browser.
func openCmd(link string) tea.Cmd {
	return func() tea.Msg {
		return OpenCompleteMsg{URL: link, Err: openURL(link)}
	}
}

func handleQueryCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	msg := lastAnswerWithQuery(m.conversation)
	if msg == nil {
		return *m, m.setStatus("No generated query to show", true)
	}
	m.showPanel(panelDetail, "Generated query", m.renderer.highlightQuery(msg.Query))
	return *m, nil
}

// lastAnswerWithQuery returns the newest bot message that carries a query.
func lastAnswerWithQuery(conv *model.Conversation) *model.Message {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Sender == model.SenderBot && msg.Query != "" {
			return msg
		}
	}
	return nil
}
