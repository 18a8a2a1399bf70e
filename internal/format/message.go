// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/util"
)

// Fallback texts for answers without usable content.
const (
	NoResultsText = "No results found."
	NoAnswerText  = "I couldn't find an answer to that."
)

// BuildBotMessage converts a backend answer into a bot message whose
// rendering fields match its display kind.
func BuildBotMessage(resp *query.Response) *model.Message {
	if resp == nil {
		return model.NewBotMessage(NoAnswerText)
	}

	var msg *model.Message
	switch Classify(resp) {
	case model.KindTable:
		msg = buildTable(resp)
	case model.KindCount:
		msg = buildCount(resp)
	case model.KindSummary:
		msg = buildSummary(resp)
	default:
		msg = model.NewBotMessage(textOr(resp.Message, NoAnswerText))
	}

	msg.Query = strings.TrimSpace(resp.Query)
	return msg
}

func buildTable(resp *query.Response) *model.Message {
	records, err := DecodeRecords(resp.Data)
	if err != nil {
		// data was present but not rows: show what we got as text.
		return model.NewBotMessage(textOr(resp.Message, fmt.Sprintf("Unexpected result format: %s", compact(resp.Data))))
	}
	if len(records) == 0 {
		return model.NewBotMessage(textOr(resp.Message, NoResultsText))
	}

	headers, rows := BuildTable(records)
	text := resp.Message
	if strings.TrimSpace(text) == "" {
		text = ResultCountText(len(rows))
	}
	return model.NewTableMessage(text, headers, rows, resp.Data)
}

func buildCount(resp *query.Response) *model.Message {
	n, ok := resp.CountValue()
	if !ok {
		return model.NewBotMessage(textOr(resp.Message, NoAnswerText))
	}
	text := resp.Message
	if strings.TrimSpace(text) == "" {
		text = CountText(n)
	}
	return model.NewCountMessage(text, n)
}

func buildSummary(resp *query.Response) *model.Message {
	summary := strings.TrimSpace(*resp.Summary)
	if summary == "" {
		return model.NewBotMessage(textOr(resp.Message, NoAnswerText))
	}
	return model.NewSummaryMessage(summary)
}

// ResultCountText describes the size of a table result.
func ResultCountText(n int) string {
	if n == 1 {
		return "Found 1 result."
	}
	return fmt.Sprintf("Found %s results.", FormatCount(int64(n)))
}

// CountText describes a count result.
func CountText(n int64) string {
	if n == 1 {
		return "There is 1 matching record."
	}
	return fmt.Sprintf("There are %s matching records.", FormatCount(n))
}

// BuildErrorMessage converts a failed request into a bot error message.
func BuildErrorMessage(err error) *model.Message {
	return model.NewErrorMessage(ErrorText(err))
}

// ErrorText returns a user-facing description of a request failure.
func ErrorText(err error) string {
	var be *query.BackendError
	switch {
	case err == nil:
		return "Something went wrong."
	case errors.Is(err, query.ErrNotConfigured):
		return "No query backend is configured. Set backend.endpoint or QUERYCHAT_ENDPOINT."
	case errors.Is(err, query.ErrEmptyQuery):
		return "Please type a question first."
	case errors.Is(err, query.ErrQueryTooLong):
		return "That question is too long. Please shorten it."
	case errors.Is(err, query.ErrRateLimited):
		return "The query service is busy. Please wait a moment and try again."
	case errors.As(err, &be):
		return fmt.Sprintf("Sorry, the query service returned an error: %s", be.Message)
	default:
		return fmt.Sprintf("Sorry, I couldn't reach the query service: %v", err)
	}
}

func textOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func compact(raw []byte) string {
	return util.TruncateRunes(strings.Join(strings.Fields(string(raw)), " "), 120)
}
