// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
)

// ErrNoTable is returned when there is no table result to export.
var ErrNoTable = errors.New("no table result to export")

// =============================================================================
// TABLE
// =============================================================================

// Table is a result table with typed cell values.
//
// Values are nil, bool, int64, float64 or string. Keys holds the backend
// column names, Headers their display form.
type Table struct {
	Keys    []string
	Headers []string
	Rows    [][]any

	// Question is the user question that produced the table.
	Question string

	// Query is the backend-generated query, if any.
	Query string
}

// TableFromMessage rebuilds a typed table from a table message.
//
// The raw backend rows are preferred. Messages without raw rows fall back to
// their already formatted string cells.
func TableFromMessage(msg *model.Message) (*Table, error) {
	if msg == nil || !msg.IsTable() {
		return nil, ErrNoTable
	}

	t := &Table{Query: msg.Query}

	if len(msg.RawData) > 0 {
		records, err := format.DecodeRecords(msg.RawData)
		if err != nil {
			return nil, fmt.Errorf("decode table rows: %w", err)
		}
		t.Keys = format.Columns(records)
		t.Headers = make([]string, len(t.Keys))
		for i, k := range t.Keys {
			t.Headers[i] = format.HumanizeHeader(k)
		}
		for _, rec := range records {
			row := make([]any, len(t.Keys))
			for i, k := range t.Keys {
				if v, ok := rec.Get(k); ok {
					row[i] = typedValue(v)
				}
			}
			t.Rows = append(t.Rows, row)
		}
		return t, nil
	}

	t.Keys = append([]string(nil), msg.Headers...)
	t.Headers = append([]string(nil), msg.Headers...)
	for _, r := range msg.Rows {
		row := make([]any, len(r))
		for i, c := range r {
			row[i] = c
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// TableFromConversation returns the most recent table result of a
// conversation, with the question that led to it.
func TableFromConversation(conv *model.Conversation) (*Table, error) {
	if conv == nil {
		return nil, ErrNoTable
	}
	msg := conv.LastTable()
	if msg == nil {
		return nil, ErrNoTable
	}

	t, err := TableFromMessage(msg)
	if err != nil {
		return nil, err
	}
	t.Question = questionFor(conv, msg)
	return t, nil
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Headers)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// questionFor finds the user message sent before msg.
func questionFor(conv *model.Conversation, msg *model.Message) string {
	var question string
	for _, m := range conv.Messages {
		if m == msg {
			return question
		}
		if m != nil && m.Sender == model.SenderUser {
			question = m.Text
		}
	}
	return question
}

// typedValue converts decoded JSON into a spreadsheet-friendly value.
// Integers beyond int64 stay strings so no digit is lost.
func typedValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i
	}
	if format.IsIntegerLiteral(string(n)) {
		return string(n)
	}
	if f, err := strconv.ParseFloat(string(n), 64); err == nil {
		return f
	}
	return string(n)
}

// rawString renders a typed value without display formatting.
func rawString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
