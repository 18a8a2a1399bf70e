// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/ui/styles"
	"github.com/jeranaias/querychat/internal/util"
)

const (
	// maxCellWidth caps a table cell before truncation.
	maxCellWidth = 32

	// maxBubbleWidth caps message bubbles on wide terminals.
	maxBubbleWidth = 100

	// defaultPreviewRows applies when the configured preview is unset.
	defaultPreviewRows = 10
)

// =============================================================================
// RENDERER
// =============================================================================

// renderer draws messages per display kind. It is shared by copies of the
// model and caches the markdown renderer for the current width.
type renderer struct {
	theme       *styles.Theme
	previewRows int

	mdWidth int
	md      *glamour.TermRenderer
}

func newRenderer(theme *styles.Theme, previewRows int) *renderer {
	if previewRows <= 0 {
		previewRows = defaultPreviewRows
	}
	return &renderer{theme: theme, previewRows: previewRows}
}

// markdown renders summary and text answers. It falls back to the plain
// text when glamour fails.
func (r *renderer) markdown(text string, width int) string {
	if r.md == nil || r.mdWidth != width {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.theme.GlamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Printf("[chat] markdown renderer: %v", err)
			return text
		}
		r.md, r.mdWidth = md, width
	}

	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// MESSAGES
// =============================================================================

// message renders one conversation entry; pos is its 1-based position.
func (r *renderer) message(msg *model.Message, pos, width int, showQuery bool) string {
	bubbleWidth := min(max(width-6, 20), maxBubbleWidth)

	var body string
	switch {
	case msg.Sender == model.SenderUser:
		body = r.theme.UserBubble.Width(bubbleWidth).Render(msg.Text)
	case msg.IsError:
		body = r.theme.ErrorBubble.Width(bubbleWidth).Render(msg.Text)
	case msg.Kind == model.KindTable:
		body = r.table(msg, width)
	case msg.Kind == model.KindCount:
		body = r.count(msg)
	default:
		body = r.markdown(msg.Text, bubbleWidth)
	}

	parts := []string{r.header(msg, pos), body}
	if showQuery && msg.Query != "" && !msg.IsError {
		parts = append(parts, r.theme.QueryLabel.Render("Query"), r.highlightQuery(msg.Query))
	}
	return strings.Join(parts, "\n")
}

// header renders "Sender  time  #pos".
func (r *renderer) header(msg *model.Message, pos int) string {
	sender := r.theme.SenderBot
	if msg.Sender == model.SenderUser {
		sender = r.theme.SenderUser
	}
	return sender.Render(msg.Sender.DisplayName()) + "  " +
		r.theme.Timestamp.Render(formatTimestamp(msg.Timestamp)) + "  " +
		r.theme.Muted.Render(fmt.Sprintf("#%d", pos))
}

// welcome is shown for an empty conversation.
func (r *renderer) welcome() string {
	lines := []string{
		r.theme.HeaderTitle.Render("Ask a question about your data."),
		"",
		r.theme.Muted.Render(`Try "how many orders shipped last week?" or "list the top 10 customers".`),
		r.theme.Muted.Render("Type /help for commands."),
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// RESULTS
// =============================================================================

// count renders a count answer as a badge followed by its sentence.
func (r *renderer) count(msg *model.Message) string {
	if msg.Count == nil {
		return msg.Text
	}
	badge := r.theme.CountBadge.Render(format.FormatCount(*msg.Count))
	return lipgloss.JoinHorizontal(lipgloss.Center, badge, "  ", r.theme.CountLabel.Render(msg.Text))
}

// table renders a table answer, collapsed to the preview rows unless the
// message is expanded.
func (r *renderer) table(msg *model.Message, width int) string {
	if len(msg.Headers) == 0 {
		return r.markdown(format.NoResultsText, width)
	}

	rows := msg.Rows
	total := len(rows)
	collapsed := !msg.Expanded && total > r.previewRows
	if collapsed {
		rows = rows[:r.previewRows]
	}

	headers := make([]string, len(msg.Headers))
	for i, h := range msg.Headers {
		headers[i] = util.TruncateWidth(h, maxCellWidth)
	}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(row))
		for j, c := range row {
			cells[i][j] = util.TruncateWidth(util.SingleLine(c), maxCellWidth)
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.theme.TableBorder).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.theme.TableHeader
			case row%2 == 0:
				return r.theme.TableCellAlt
			default:
				return r.theme.TableCell
			}
		})

	rendered := t.Render()
	if width > 0 && lipgloss.Width(rendered) > width {
		rendered = t.Width(width).Render()
	}

	parts := []string{}
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	parts = append(parts, rendered, r.theme.TableFooter.Render(tableFooter(total, len(rows), msg.Expanded)))
	return strings.Join(parts, "\n")
}

// tableFooter describes how much of a table is shown.
func tableFooter(total, shown int, expanded bool) string {
	switch {
	case shown < total:
		return fmt.Sprintf("Showing %d of %d rows. Ctrl+E or /expand to show all.", shown, total)
	case expanded:
		return fmt.Sprintf("Showing all %d rows. Ctrl+E to collapse.", total)
	default:
		return fmt.Sprintf("Showing all %d rows.", total)
	}
}

// highlightQuery renders a generated query with SQL highlighting.
func (r *renderer) highlightQuery(q string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, q, "sql", r.theme.ChromaFormatter(), r.theme.ChromaStyle()); err != nil {
		return r.theme.QueryBlock.Render(q)
	}
	return r.theme.QueryBlock.Render(strings.TrimRight(buf.String(), "\n"))
}
