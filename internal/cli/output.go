// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// output.go - Printing answers for ask, chat and history.
//
// On a terminal answers are styled: tables get borders, summaries go through
// glamour and generated queries are highlighted. Otherwise tables are
// printed tab-separated so they can be piped into other tools.

package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/ui/styles"
)

// printer writes messages to one stream.
type printer struct {
	w         io.Writer
	styled    bool
	width     int
	showQuery bool
	theme     *styles.Theme
	md        *glamour.TermRenderer
}

// newPrinter returns a printer for stdout, styled when stdout is a terminal.
func newPrinter(cfg *config.Config) *printer {
	p := &printer{
		w:         stdout,
		styled:    IsStdoutTTY(),
		width:     GetTerminalWidth(),
		showQuery: cfg.UI.ShowQuery,
		theme:     styles.NewTheme(cfg.UI.Theme),
	}
	if p.styled {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(p.theme.GlamourStyle()),
			glamour.WithWordWrap(p.width-4),
		)
		if err == nil {
			p.md = md
		}
	}
	return p
}

// answer prints a bot message.
func (p *printer) answer(msg *model.Message) {
	switch {
	case msg.IsError:
		fmt.Fprintln(p.w, ErrorStyle.Render(msg.Text))
	case msg.IsTable():
		p.table(msg)
	case msg.Kind == model.KindCount && msg.Count != nil:
		p.count(msg)
	default:
		p.markdown(msg.Text)
	}

	if p.styled && p.showQuery && msg.Query != "" {
		fmt.Fprintln(p.w, DimStyle.Render("Query:"))
		fmt.Fprintln(p.w, p.highlight(msg.Query))
	}
}

// message prints any message with a sender line, for history output.
func (p *printer) message(msg *model.Message, pos int) {
	header := fmt.Sprintf("#%d %s  %s", pos, msg.Sender.DisplayName(), msg.Timestamp.Format("2006-01-02 15:04"))
	if p.styled {
		header = RenderSender(msg.Sender == model.SenderUser, header)
	}
	fmt.Fprintln(p.w, header)

	if msg.Sender == model.SenderUser {
		fmt.Fprintln(p.w, msg.Text)
		return
	}
	p.answer(msg)
}

func (p *printer) count(msg *model.Message) {
	if !p.styled {
		fmt.Fprintln(p.w, msg.Text)
		return
	}
	fmt.Fprintln(p.w, HighlightStyle.Render(format.FormatCount(*msg.Count))+"  "+ValueStyle.Render(msg.Text))
}

func (p *printer) markdown(text string) {
	if p.md == nil {
		fmt.Fprintln(p.w, text)
		return
	}
	out, err := p.md.Render(text)
	if err != nil {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintln(p.w, strings.Trim(out, "\n"))
}

// table prints every row. The message text goes to stderr when output is
// piped so stdout holds only the rows.
func (p *printer) table(msg *model.Message) {
	if !p.styled {
		if msg.Text != "" {
			fmt.Fprintln(stderr, msg.Text)
		}
		fmt.Fprintln(p.w, tsv(msg))
		return
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.TableHeaderFg).Background(styles.TableHeaderBg).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.TableBorder)).
		Headers(msg.Headers...).
		Rows(msg.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if lipgloss.Width(t.Render()) > p.width {
		t = t.Width(p.width)
	}

	fmt.Fprintln(p.w, ValueStyle.Render(msg.Text))
	fmt.Fprintln(p.w, t.Render())
}

// highlight colors a generated query, returning it unchanged on failure.
func (p *printer) highlight(q string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, q, "sql", p.theme.ChromaFormatter(), p.theme.ChromaStyle()); err != nil {
		return q
	}
	return strings.TrimRight(buf.String(), "\n")
}

// tsv returns a table message as tab-separated lines, headers first.
func tsv(msg *model.Message) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(msg.Headers, "\t"))
	for _, row := range msg.Rows {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(row, "\t"))
	}
	return sb.String()
}
