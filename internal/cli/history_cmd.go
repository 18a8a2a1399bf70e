// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Inspect and manage the stored conversation.
//
// Usage:
//
//	querychat history [list] [--limit N]
//	querychat history show N
//	querychat history info
//	querychat history export [FILE] [--format xlsx|csv|md|json]
//	querychat history clear --confirm

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/storage"
	"github.com/jeranaias/querychat/internal/util"
)

// previewLength is how much of each message `history list` shows.
const previewLength = 60

// HistoryEntry is one message in `history list --json`.
type HistoryEntry struct {
	Position  int    `json:"position"`
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Kind      string `json:"kind,omitempty"`
	Timestamp string `json:"timestamp"`
	Preview   string `json:"preview"`
	Rows      int    `json:"rows,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// HistoryInfo is the output of `history info`.
type HistoryInfo struct {
	Backend  string `json:"backend"`
	Path     string `json:"path"`
	Messages int    `json:"messages"`
	Bytes    int64  `json:"bytes"`
	Quota    int64  `json:"quota_bytes"`
}

// HandleHistory dispatches the history subcommands.
func HandleHistory(args Args) error {
	parser := NewArgParser(args.Rest, "confirm", "yes", "y")

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	conv, err := store.Load(ctx)
	if err != nil {
		return NewCommandError("history", "load", "could not read the stored history", err)
	}

	switch sub := strings.ToLower(parser.Subcommand()); sub {
	case "", "list", "ls":
		return historyList(args, parser, conv)
	case "show":
		return historyShow(args, cfg, parser, conv)
	case "info":
		return historyInfo(args, cfg, store, conv)
	case "export":
		return historyExport(args, cfg, parser, conv)
	case "clear":
		return historyClear(args, parser, store, conv)
	default:
		return NewValidationErrorWithExample("history subcommand", sub,
			"expected list, show, info, export or clear", "querychat history list --limit 10")
	}
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func historyList(args Args, parser *ArgParser, conv *model.Conversation) error {
	limit := parser.FlagIntOrDefault("limit", 0)
	if parser.HasFlag("limit") && limit <= 0 {
		return NewValidationError("limit", parser.Flag("limit"), "must be a positive integer")
	}

	start := 0
	if limit > 0 && conv.Len() > limit {
		start = conv.Len() - limit
	}

	entries := make([]HistoryEntry, 0, conv.Len()-start)
	for i := start; i < conv.Len(); i++ {
		msg := conv.Messages[i]
		entries = append(entries, HistoryEntry{
			Position:  i + 1,
			ID:        msg.ID,
			Sender:    string(msg.Sender),
			Kind:      string(msg.Kind),
			Timestamp: msg.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			Preview:   msg.Preview(previewLength),
			Rows:      msg.RowCount(),
			IsError:   msg.IsError,
		})
	}

	if args.JSON {
		return NewJSONResponse("history list", entries).Print()
	}

	if len(entries) == 0 {
		if !args.Quiet {
			fmt.Fprintln(stdout, DimStyle.Render("No history yet. Ask something with: querychat ask QUESTION"))
		}
		return nil
	}

	for _, e := range entries {
		msg := conv.Messages[e.Position-1]
		when := humanize.Time(msg.Timestamp)
		sender := RenderSender(msg.Sender == model.SenderUser, fmt.Sprintf("%-9s", msg.Sender.DisplayName()))
		detail := e.Preview
		if e.Rows > 0 {
			detail += DimStyle.Render(fmt.Sprintf("  [%s rows]", humanize.Comma(int64(e.Rows))))
		}
		if e.IsError {
			detail = ErrorStyle.Render(detail)
		}
		fmt.Fprintf(stdout, "%4s  %s  %-14s  %s\n", "#"+strconv.Itoa(e.Position), sender, DimStyle.Render(when), detail)
	}
	return nil
}

func historyShow(args Args, cfg *config.Config, parser *ArgParser, conv *model.Conversation) error {
	pos, err := ParseIntWithValidation(strings.TrimPrefix(parser.Positional(1), "#"), "message number")
	if err != nil {
		return &ValidationError{Field: "message number", Value: parser.Positional(1), Reason: err.Error(), Example: "querychat history show 3"}
	}
	msg := conv.Get(pos)
	if msg == nil {
		return &NotFoundError{Resource: "message", ID: "#" + strconv.Itoa(pos)}
	}

	if args.JSON {
		return NewJSONResponse("history show", msg).Print()
	}
	newPrinter(cfg).message(msg, pos)
	return nil
}

func historyInfo(args Args, cfg *config.Config, store storage.Store, conv *model.Conversation) error {
	info := HistoryInfo{
		Backend:  cfg.Storage.Backend,
		Path:     store.Path(),
		Messages: conv.Len(),
		Quota:    cfg.Storage.QuotaBytes,
	}
	if st, err := os.Stat(store.Path()); err == nil {
		info.Bytes = st.Size()
	}

	if args.JSON {
		return NewJSONResponse("history info", info).Print()
	}

	quota := "unlimited"
	if info.Quota > 0 {
		quota = humanize.Bytes(uint64(info.Quota))
	}
	fmt.Fprintln(stdout, TitleStyle.Render("History"))
	fmt.Fprintln(stdout, RenderLabel("Backend:")+ValueStyle.Render(info.Backend))
	fmt.Fprintln(stdout, RenderLabel("Path:")+ValueStyle.Render(info.Path))
	fmt.Fprintln(stdout, RenderLabel("Messages:")+ValueStyle.Render(humanize.Comma(int64(info.Messages))))
	fmt.Fprintln(stdout, RenderLabel("Size:")+ValueStyle.Render(humanize.Bytes(uint64(info.Bytes))+" of "+quota))
	if !conv.IsEmpty() {
		fmt.Fprintln(stdout, RenderLabel("Last activity:")+ValueStyle.Render(humanize.Time(conv.Last().Timestamp)))
	}
	return nil
}

func historyExport(args Args, cfg *config.Config, parser *ArgParser, conv *model.Conversation) error {
	if conv.IsEmpty() {
		return NewCommandError("history", "export", "the history is empty", nil)
	}

	path, err := exportConversation(cfg, conv, parser.Positional(1), parser.Flag("format", "f"))
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("history export", map[string]string{"path": path}).Print()
	}
	if !args.Quiet {
		fmt.Fprintln(stdout, SuccessStyle.Render("Exported to")+" "+path)
	}
	return nil
}

func historyClear(args Args, parser *ArgParser, store storage.Store, conv *model.Conversation) error {
	if !parser.BoolFlag("confirm", "yes", "y") {
		return NewValidationErrorWithExample("confirmation", "",
			fmt.Sprintf("clearing deletes all %d stored messages; pass --confirm", conv.Len()),
			"querychat history clear --confirm")
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := store.Clear(ctx); err != nil {
		return NewCommandError("history", "clear", "could not delete the stored history", err)
	}

	if args.JSON {
		return NewJSONResponse("history clear", map[string]int{"deleted": conv.Len()}).Print()
	}
	if !args.Quiet {
		fmt.Fprintln(stdout, SuccessStyle.Render(fmt.Sprintf("Cleared %d messages", conv.Len())))
	}
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

// exportConversation writes conv and returns the file written.
//
// target is either a file path, whose extension selects the format, or a
// format name. With neither, formatName or the configured default is used
// and the file is named and placed by the export package. Table formats
// export the newest table answer, the others the whole transcript.
func exportConversation(cfg *config.Config, conv *model.Conversation, target, formatName string) (string, error) {
	opts := exportOptions(cfg)

	if isFormatName(target) {
		formatName, target = target, ""
	}
	if target != "" && formatName == "" {
		formatName = filepath.Ext(target)
	}
	if formatName == "" {
		formatName = cfg.Export.DefaultFormat
	}

	exp, err := export.ForFormat(formatName, opts)
	if err != nil {
		return "", err
	}
	if _, ok := exp.(export.TableExporter); ok && conv.LastTable() == nil {
		return "", NewCommandError("export", formatName, "there is no table answer to export; use md or json for the transcript", export.ErrNoTable)
	}

	if target == "" {
		return export.ExportToFile(conv, exp, opts)
	}

	content, err := exp.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := util.AtomicWriteFile(target, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return target, nil
}

// isFormatName reports whether s names a format rather than a file.
func isFormatName(s string) bool {
	if s == "" || strings.ContainsAny(s, `./\`) {
		return false
	}
	_, err := export.ForFormat(s, nil)
	return err == nil
}
