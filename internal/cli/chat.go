// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat for terminals where the full-screen UI is
// unwanted (scrollback, screen readers, slow links).
//
// Input history (arrow keys) is kept in ~/.querychat/chat_history. The
// conversation itself is shared with the TUI through the history store.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/peterh/liner"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
	"github.com/jeranaias/querychat/internal/ui/styles"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// replCommands are completed on Tab.
var replCommands = []string{"/help", "/history", "/export", "/copy", "/query", "/clear", "/quit"}

// ChatCLI wraps the liner line editor and its history file.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with Ctrl+C aborting the current line.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		if !strings.HasPrefix(input, "/") {
			return nil
		}
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, strings.ToLower(input)) {
				out = append(out, c)
			}
		}
		return out
	})

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "chat_history")
	}
	return &ChatCLI{line: line, historyFile: historyFile}
}

// LoadHistory reads previous input lines, if any.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	f, err := os.Open(c.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.ReadHistory(f)
}

// ReadInput prompts for one line and records non-empty input in history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close restores the terminal.
func (c *ChatCLI) Close() error {
	return c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession holds the state of one REPL run.
type chatSession struct {
	cfg    *config.Config
	client Asker
	store  storage.Store
	conv   *model.Conversation
	out    *printer
}

// Asker sends one question to the backend.
type Asker interface {
	Ask(ctx context.Context, req query.Request) (*query.Response, error)
}

// HandleChat runs the REPL until /quit, Ctrl+D or Ctrl+C on an empty line.
func HandleChat(args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	client := NewClient(cfg)
	if !client.IsConfigured() {
		return query.ErrNotConfigured
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := newChatSession(cfg, client, store)
	if err != nil {
		return err
	}

	editor := NewChatCLI()
	defer editor.Close()
	editor.LoadHistory()
	defer editor.SaveHistory()

	if !args.Quiet {
		fmt.Fprintln(stdout, HighlightStyle.Render("querychat")+"  "+DimStyle.Render(client.Endpoint()))
		fmt.Fprintln(stdout, DimStyle.Render(fmt.Sprintf("%d messages in history. Type /help for commands, /quit to leave.", s.conv.Len())))
	}

	for {
		input, err := editor.ReadInput("? ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Fprintln(stdout)
			return nil
		}
		if err != nil {
			return NewCommandError("chat", "read", "could not read input", err)
		}

		if quit := s.handleLine(input); quit {
			return nil
		}
	}
}

func newChatSession(cfg *config.Config, client Asker, store storage.Store) (*chatSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	conv, err := store.Load(ctx)
	if err != nil {
		return nil, NewCommandError("chat", "load", "could not read the stored history", err)
	}
	return &chatSession{cfg: cfg, client: client, store: store, conv: conv, out: newPrinter(cfg)}, nil
}

// handleLine runs one input line and reports whether the session should end.
func (s *chatSession) handleLine(input string) bool {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return false
	case strings.HasPrefix(input, "/"):
		return s.command(input)
	default:
		s.ask(input)
		return false
	}
}

// ask sends a question, printing the answer or the failure. Ctrl+C cancels
// the request without ending the session.
func (s *chatSession) ask(question string) {
	s.conv.Append(model.NewUserMessage(question))
	s.save()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	done := make(chan struct{})
	go waitIndicator(done, time.Now())

	resp, err := s.client.Ask(ctx, query.Request{Query: question, ConversationID: s.conv.ID})
	close(done)
	stop()

	var msg *model.Message
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stdout, DimStyle.Render("Cancelled."))
		return
	case err != nil:
		msg = format.BuildErrorMessage(err)
	default:
		msg = format.BuildBotMessage(resp)
	}

	s.conv.Append(msg)
	s.save()
	s.out.answer(msg)
}

// save persists the conversation, reporting but not failing on errors.
func (s *chatSession) save() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := s.store.Save(ctx, s.conv)
	switch {
	case errors.Is(err, storage.ErrQuotaExceeded):
		fmt.Fprintln(stderr, WarningStyle.Render("History is over the storage quota and was not saved"))
	case err != nil:
		fmt.Fprintln(stderr, WarningStyle.Render("Could not save history: "+err.Error()))
	}
}

// waitIndicator animates a spinner on stderr until done is closed.
func waitIndicator(done <-chan struct{}, start time.Time) {
	if !IsStderrTTY() {
		<-done
		return
	}

	ticker := time.NewTicker(styles.DotsSpinner.FPS)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			fmt.Fprint(stderr, "\r\x1b[K")
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			fmt.Fprint(stderr, "\r"+DimStyle.Render("Thinking"+styles.FrameAt(styles.DotsSpinner, elapsed)+" "+styles.ElapsedText(elapsed)))
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `Commands:
  /help             Show this help
  /history [N]      Show the last N messages (default 10)
  /export [FORMAT]  Export the newest table or the transcript (xlsx, csv, md, json)
  /copy             Copy the last answer to the clipboard
  /query            Show the query behind the last answer
  /clear            Delete the conversation
  /quit             Leave`

// command runs a slash command and reports whether the session should end.
func (s *chatSession) command(input string) bool {
	fields := strings.Fields(input)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch name {
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		fmt.Fprintln(stdout, replHelp)
	case "history":
		s.showHistory(arg)
	case "export", "e":
		s.export(arg)
	case "copy":
		s.copyLast()
	case "query", "sql":
		s.showQuery()
	case "clear":
		s.clear()
	default:
		fmt.Fprintln(stdout, WarningStyle.Render(fmt.Sprintf("Unknown command /%s. Type /help for commands.", name)))
	}
	return false
}

func (s *chatSession) showHistory(arg string) {
	n := 10
	if arg != "" {
		v, err := ParseIntWithValidation(arg, "count")
		if err != nil {
			fmt.Fprintln(stdout, WarningStyle.Render(err.Error()))
			return
		}
		n = v
	}
	start := max(s.conv.Len()-n, 0)
	for i := start; i < s.conv.Len(); i++ {
		s.out.message(s.conv.Messages[i], i+1)
	}
}

func (s *chatSession) export(arg string) {
	if s.conv.IsEmpty() {
		fmt.Fprintln(stdout, WarningStyle.Render("Nothing to export yet"))
		return
	}
	path, err := exportConversation(s.cfg, s.conv, arg, "")
	if err != nil {
		fmt.Fprintln(stdout, ErrorStyle.Render("Export failed: "+err.Error()))
		return
	}
	fmt.Fprintln(stdout, SuccessStyle.Render("Exported to")+" "+path)
}

func (s *chatSession) copyLast() {
	msg := s.conv.LastBot()
	if msg == nil {
		fmt.Fprintln(stdout, WarningStyle.Render("Nothing to copy yet"))
		return
	}
	text := msg.Text
	if msg.IsTable() {
		text = tsv(msg)
	}
	if err := writeClipboard(text); err != nil {
		fmt.Fprintln(stdout, ErrorStyle.Render("Copy failed: "+err.Error()))
		return
	}
	fmt.Fprintln(stdout, SuccessStyle.Render("Copied last answer"))
}

func (s *chatSession) showQuery() {
	for i := s.conv.Len() - 1; i >= 0; i-- {
		if q := s.conv.Messages[i].Query; q != "" {
			if s.out.styled {
				q = s.out.highlight(q)
			}
			fmt.Fprintln(stdout, q)
			return
		}
	}
	fmt.Fprintln(stdout, WarningStyle.Render("No generated query to show"))
}

func (s *chatSession) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Clear(ctx); err != nil {
		fmt.Fprintln(stdout, ErrorStyle.Render("Could not clear history: "+err.Error()))
		return
	}
	s.conv.Clear()
	fmt.Fprintln(stdout, SuccessStyle.Render("Conversation cleared"))
}

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll
