// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
)

func mustDecode(t *testing.T, body string) *query.Response {
	t.Helper()
	resp, err := query.DecodeResponse([]byte(body))
	require.NoError(t, err)
	return resp
}

// =============================================================================
// CLASSIFY TESTS
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		body string
		want model.DisplayKind
	}{
		{`{"data":[{"a":1}],"count":1,"summary":"s"}`, model.KindTable},
		{`{"count":3,"summary":"s"}`, model.KindCount},
		{`{"summary":"three rows"}`, model.KindSummary},
		{`{"message":"hello"}`, model.KindText},
		{`{"data":null,"count":0}`, model.KindCount},
		{`{}`, model.KindText},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Classify(mustDecode(t, tt.body)), tt.body)
	}
	require.Equal(t, model.KindText, Classify(nil))
}

// =============================================================================
// RECORD TESTS
// =============================================================================

func TestDecodeRecords_PreservesKeyOrder(t *testing.T) {
	records, err := DecodeRecords(json.RawMessage(`[
		{"zeta": 1, "alpha": "a", "mid": null},
		{"alpha": "b", "extra": true, "zeta": 2.5}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{"zeta", "alpha", "mid"}, records[0].Keys)
	require.Equal(t, []string{"zeta", "alpha", "mid", "extra"}, Columns(records))

	v, ok := records[1].Get("zeta")
	require.True(t, ok)
	require.Equal(t, json.Number("2.5"), v)
}

func TestDecodeRecords_ScalarsAndNested(t *testing.T) {
	records, err := DecodeRecords(json.RawMessage(`[1, "two", {"tags": ["a", "b"], "meta": {"k": 1}}]`))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{ScalarColumn}, records[0].Keys)
	require.Equal(t, "two", records[1].Values[ScalarColumn])
	require.Equal(t, `["a","b"]`, records[2].Values["tags"])
	require.Equal(t, `{"k":1}`, records[2].Values["meta"])
}

func TestDecodeRecords_NotArray(t *testing.T) {
	_, err := DecodeRecords(json.RawMessage(`{"a":1}`))
	require.ErrorIs(t, err, ErrNotArray)
}

func TestBuildTable_FillsMissingCells(t *testing.T) {
	records, err := DecodeRecords(json.RawMessage(`[{"first_name":"Ada","orderCount":3},{"first_name":"Linus"}]`))
	require.NoError(t, err)

	headers, rows := BuildTable(records)
	require.Equal(t, []string{"First Name", "Order Count"}, headers)
	require.Equal(t, [][]string{{"Ada", "3"}, {"Linus", ""}}, rows)
}

// =============================================================================
// CELL TESTS
// =============================================================================

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "true"},
		{json.Number("1234567"), "1,234,567"},
		{json.Number("1234.5"), "1,234.5"},
		{json.Number("0.456"), "0.46"},
		{json.Number("-42"), "-42"},
		{json.Number("12345678901234567890"), "12,345,678,901,234,567,890"},
		{json.Number("-123456789012345678901"), "-123,456,789,012,345,678,901"},
		{json.Number("-0.001"), "0"},
		{-0.004, "0"},
		{3.0, "3"},
		{"2024-03-05T14:30:00Z", "2024-03-05 14:30"},
		{"2024-03-05", "2024-03-05"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatCell(tt.in), fmt.Sprintf("%#v", tt.in))
	}
}

func TestHumanizeHeader(t *testing.T) {
	tests := map[string]string{
		"customer_id":  "Customer ID",
		"createdAt":    "Created At",
		"HTTPStatus":   "HTTP Status",
		"total":        "Total",
		"order-number": "Order Number",
		"":             "",
	}
	for in, want := range tests {
		require.Equal(t, want, HumanizeHeader(in), in)
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestBuildBotMessage_Table(t *testing.T) {
	msg := BuildBotMessage(mustDecode(t, `{"data":[{"name":"Ada","total":10},{"name":"Bob","total":20}],"query":"SELECT 1"}`))
	require.Equal(t, model.KindTable, msg.Kind)
	require.Equal(t, []string{"Name", "Total"}, msg.Headers)
	require.Len(t, msg.Rows, 2)
	require.Equal(t, "Found 2 results.", msg.Text)
	require.Equal(t, "SELECT 1", msg.Query)
	require.NotEmpty(t, msg.RawData)
	require.NoError(t, msg.Validate())
}

func TestBuildBotMessage_EmptyData(t *testing.T) {
	msg := BuildBotMessage(mustDecode(t, `{"data":[]}`))
	require.Equal(t, model.KindText, msg.Kind)
	require.Equal(t, NoResultsText, msg.Text)
	require.NoError(t, msg.Validate())
}

func TestBuildBotMessage_Count(t *testing.T) {
	msg := BuildBotMessage(mustDecode(t, `{"count":1500}`))
	require.Equal(t, model.KindCount, msg.Kind)
	require.Equal(t, int64(1500), *msg.Count)
	require.Equal(t, "There are 1,500 matching records.", msg.Text)
	require.NoError(t, msg.Validate())
}

func TestBuildBotMessage_SummaryAndText(t *testing.T) {
	summary := BuildBotMessage(mustDecode(t, `{"summary":"Sales grew **12%**."}`))
	require.Equal(t, model.KindSummary, summary.Kind)
	require.NoError(t, summary.Validate())

	blank := BuildBotMessage(mustDecode(t, `{"summary":"  "}`))
	require.Equal(t, model.KindText, blank.Kind)
	require.Equal(t, NoAnswerText, blank.Text)

	text := BuildBotMessage(mustDecode(t, `{"message":"Hello there"}`))
	require.Equal(t, model.KindText, text.Kind)
	require.Equal(t, "Hello there", text.Text)
}

func TestBuildBotMessage_MalformedData(t *testing.T) {
	msg := BuildBotMessage(mustDecode(t, `{"data":{"not":"rows"}}`))
	require.Equal(t, model.KindText, msg.Kind)
	require.Contains(t, msg.Text, "Unexpected result format")
}

func TestBuildBotMessage_MalformedDataTruncatesRunes(t *testing.T) {
	body := `{"data":{"note":"` + strings.Repeat("é", 200) + `"}}`
	msg := BuildBotMessage(mustDecode(t, body))
	require.Equal(t, model.KindText, msg.Kind)
	require.True(t, utf8.ValidString(msg.Text), "text must stay valid UTF-8: %q", msg.Text)
	require.True(t, strings.HasSuffix(msg.Text, "..."))
}

func TestIsIntegerLiteral(t *testing.T) {
	require.True(t, IsIntegerLiteral("12345678901234567890"))
	require.True(t, IsIntegerLiteral("-7"))
	require.False(t, IsIntegerLiteral("1.5"))
	require.False(t, IsIntegerLiteral("1e3"))
	require.False(t, IsIntegerLiteral("-"))
	require.False(t, IsIntegerLiteral(""))
}

func TestBuildErrorMessage(t *testing.T) {
	msg := BuildErrorMessage(&query.BackendError{Status: 500, Message: "boom"})
	require.True(t, msg.IsError)
	require.Contains(t, msg.Text, "boom")

	msg = BuildErrorMessage(fmt.Errorf("wrapped: %w", query.ErrNotConfigured))
	require.Contains(t, msg.Text, "No query backend")

	msg = BuildErrorMessage(errors.New("dial tcp: refused"))
	require.Contains(t, msg.Text, "couldn't reach")
	require.NoError(t, msg.Validate())
}
