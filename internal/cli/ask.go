// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot questions.
//
// Usage:
//
//	querychat ask "how many orders shipped last week?"
//	querychat ask --export top.xlsx "top 5 customers by revenue"
//	echo "list open orders" | querychat ask --json
//
// --json prints the backend response exactly as received.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
)

// storeTimeout bounds one history load or save.
const storeTimeout = 5 * time.Second

// HandleAsk sends one question and prints the answer.
func HandleAsk(args Args) error {
	parser := NewArgParser(args.Rest, "save")

	question, err := askQuestion(parser)
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	client := NewClient(cfg)
	if !client.IsConfigured() {
		return query.ErrNotConfigured
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp, err := client.Ask(ctx, query.Request{Query: question})
	if err != nil {
		return err
	}

	msg := format.BuildBotMessage(resp)
	exchange := model.NewConversation()
	exchange.Append(model.NewUserMessage(question))
	exchange.Append(msg)

	if path := parser.Flag("export", "o"); path != "" {
		t, err := export.TableFromConversation(exchange)
		if err != nil {
			return NewCommandError("ask", "export", "the answer is not a table", err)
		}
		if err := export.WriteTable(t, path, exportOptions(cfg)); err != nil {
			return NewCommandError("ask", "export", "could not write "+path, err)
		}
		if !args.Quiet {
			StderrPrint("Exported %d rows to %s\n", t.Len(), path)
		}
	}

	if parser.BoolFlag("save") {
		if err := saveExchange(cfg, exchange); err != nil {
			return err
		}
	}

	if args.JSON {
		_, err := fmt.Fprintln(stdout, strings.TrimSpace(string(resp.Raw)))
		return err
	}
	newPrinter(cfg).answer(msg)
	return nil
}

// askQuestion joins the positional arguments, reading the question from
// stdin when none are given and stdin is piped.
func askQuestion(parser *ArgParser) (string, error) {
	question := strings.TrimSpace(JoinPositionalArgs(parser, 0))
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(stdin, query.MaxQueryLength*4))
		if err != nil {
			return "", fmt.Errorf("read question from stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return "", NewValidationErrorWithExample("question", "", "a question is required",
			`querychat ask "how many orders shipped last week?"`)
	}
	return question, nil
}

// saveExchange appends the messages of exchange to the stored history.
func saveExchange(cfg *config.Config, exchange *model.Conversation) error {
	store, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return appendToStore(store, exchange.Messages...)
}

// appendToStore loads the history, appends msgs and saves it back.
func appendToStore(store storage.Store, msgs ...*model.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	conv, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, msg := range msgs {
		conv.Append(msg)
	}
	if err := store.Save(ctx, conv); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
