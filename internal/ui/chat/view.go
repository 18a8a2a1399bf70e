// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/querychat/internal/ui/styles"
	"github.com/jeranaias/querychat/internal/util"
)

// =============================================================================
// MAIN VIEW
// =============================================================================

// renderChat stacks header, messages, panel, input and status bar.
func (m Model) renderChat() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	sections := []string{m.renderHeader(), m.viewport.View()}
	if m.panel != panelNone {
		sections = append(sections, m.renderPanel())
	}
	sections = append(sections, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// layout sizes the viewport to the space the other sections leave.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	used := lipgloss.Height(m.renderHeader()) +
		lipgloss.Height(m.renderInput()) +
		lipgloss.Height(m.renderStatusBar())
	if m.panel != panelNone {
		used += lipgloss.Height(m.renderPanel())
	}

	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-used, 3)
}

// =============================================================================
// SECTIONS
// =============================================================================

// renderHeader shows the title, the backend and the message count.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("querychat")

	endpoint := m.endpoint
	if endpoint == "" {
		endpoint = "no backend configured"
	}
	info := fmt.Sprintf("%s  %d messages", endpoint, m.conversation.Len())
	if m.theme.GetLayoutMode() == styles.LayoutNarrow {
		info = fmt.Sprintf("%d msgs", m.conversation.Len())
	}
	avail := max(m.width-lipgloss.Width(title)-4, 0)
	subtitle := m.theme.HeaderSubtitle.Render(util.TruncateWidth(info, avail))

	return m.theme.Header.Width(m.width).Render(title + "  " + subtitle)
}

// renderMessages draws the whole conversation for the viewport.
func (m *Model) renderMessages() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if m.conversation.IsEmpty() {
		return m.renderer.welcome()
	}

	blocks := make([]string, 0, m.conversation.Len())
	for i, msg := range m.conversation.Messages {
		blocks = append(blocks, m.renderer.message(msg, i+1, width, m.showQuery))
	}
	return strings.Join(blocks, "\n\n")
}

// renderPanel draws the help or detail panel.
func (m Model) renderPanel() string {
	title := m.theme.HeaderTitle.Render(m.panelTitle) + "  " + m.theme.Muted.Render("Esc to close")
	body := strings.TrimRight(m.panelBody, "\n")
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(0, 1).
		Width(max(m.width-2, 10)).
		Render(title + "\n" + body)
}

// renderInput draws the text input.
func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

// renderStatusBar shows the pending indicator or status line on the left
// and key hints on the right.
func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.state == StateWaiting:
		left = m.spinner.View() + " " +
			m.theme.Pending.Render("Waiting for answer "+styles.ElapsedText(time.Since(m.pendingStart)))
	case m.statusMsg != "" && m.statusError:
		left = m.theme.Error.Render(m.statusMsg)
	case m.statusMsg != "":
		left = m.theme.Notice.Render(m.statusMsg)
	}

	right := ""
	if m.theme.GetLayoutMode() != styles.LayoutNarrow {
		right = m.help.ShortHelpView(m.keyMap.ShortHelp())
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		right = ""
		gap = max(m.width-lipgloss.Width(left)-2, 0)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
