// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
)

const ordersBody = `{
	"data": [
		{"customer_name": "Ada", "order_total": 1234, "avg_price": 12.5, "shipped": true},
		{"customer_name": "Bob | Co", "order_total": 7, "avg_price": null, "shipped": false}
	],
	"query": "SELECT customer_name, order_total FROM orders"
}`

func testConversation(t *testing.T) *model.Conversation {
	t.Helper()
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("List orders by customer"))

	resp, err := query.DecodeResponse([]byte(ordersBody))
	require.NoError(t, err)
	conv.Append(format.BuildBotMessage(resp))

	conv.Append(model.NewUserMessage("How many orders?"))
	resp, err = query.DecodeResponse([]byte(`{"count": 2}`))
	require.NoError(t, err)
	conv.Append(format.BuildBotMessage(resp))
	return conv
}

// =============================================================================
// TABLE TESTS
// =============================================================================

func TestTableFromConversation(t *testing.T) {
	tbl, err := TableFromConversation(testConversation(t))
	require.NoError(t, err)

	require.Equal(t, []string{"customer_name", "order_total", "avg_price", "shipped"}, tbl.Keys)
	require.Equal(t, []string{"Customer Name", "Order Total", "Avg Price", "Shipped"}, tbl.Headers)
	require.Equal(t, "List orders by customer", tbl.Question)
	require.Contains(t, tbl.Query, "FROM orders")
	require.Equal(t, 2, tbl.Len())

	require.Equal(t, int64(1234), tbl.Rows[0][1])
	require.Equal(t, 12.5, tbl.Rows[0][2])
	require.Equal(t, true, tbl.Rows[0][3])
	require.Nil(t, tbl.Rows[1][2])
}

func TestTableFromConversation_NoTable(t *testing.T) {
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("hi"))
	conv.Append(model.NewBotMessage("hello"))

	_, err := TableFromConversation(conv)
	require.ErrorIs(t, err, ErrNoTable)

	_, err = TableFromConversation(nil)
	require.ErrorIs(t, err, ErrNoTable)
}

func TestTableFromMessage_WithoutRawData(t *testing.T) {
	msg := model.NewTableMessage("", []string{"Name"}, [][]string{{"Ada"}}, nil)
	tbl, err := TableFromMessage(msg)
	require.NoError(t, err)
	require.Equal(t, []string{"Name"}, tbl.Headers)
	require.Equal(t, "Ada", tbl.Rows[0][0])
}

// =============================================================================
// XLSX TESTS
// =============================================================================

func TestXLSXExporter(t *testing.T) {
	data, err := NewXLSXExporter(nil).Export(testConversation(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{DefaultSheetName}, f.GetSheetList())

	header, err := f.GetCellValue(DefaultSheetName, "A1")
	require.NoError(t, err)
	require.Equal(t, "Customer Name", header)

	total, err := f.GetCellValue(DefaultSheetName, "B2")
	require.NoError(t, err)
	require.Equal(t, "1234", total)

	cellType, err := f.GetCellType(DefaultSheetName, "B2")
	require.NoError(t, err)
	require.NotEqual(t, excelize.CellTypeSharedString, cellType)
	require.NotEqual(t, excelize.CellTypeInlineString, cellType)

	name, err := f.GetCellValue(DefaultSheetName, "A3")
	require.NoError(t, err)
	require.Equal(t, "Bob | Co", name)

	width, err := f.GetColWidth(DefaultSheetName, "A")
	require.NoError(t, err)
	require.GreaterOrEqual(t, width, float64(minColumnWidth))
}

func TestXLSXExporter_NoTable(t *testing.T) {
	conv := model.NewConversation()
	conv.Append(model.NewBotMessage("nothing here"))

	_, err := NewXLSXExporter(nil).Export(conv)
	require.ErrorIs(t, err, ErrNoTable)
}

func TestColumnWidths_Clamped(t *testing.T) {
	tbl := &Table{
		Headers: []string{"A", "Long"},
		Rows:    [][]any{{"x", strings.Repeat("y", 200)}},
	}
	widths := columnWidths(tbl)
	require.Equal(t, float64(minColumnWidth), widths[0])
	require.Equal(t, float64(maxColumnWidth), widths[1])
}

// =============================================================================
// CSV TESTS
// =============================================================================

func TestCSVExporter(t *testing.T) {
	data, err := NewCSVExporter(nil).Export(testConversation(t))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Customer Name", "Order Total", "Avg Price", "Shipped"},
		{"Ada", "1234", "12.5", "true"},
		{"Bob | Co", "7", "", "false"},
	}, records)
}

func TestExporters_KeepLargeIntegers(t *testing.T) {
	resp, err := query.DecodeResponse([]byte(`{"data": [{"account_id": 12345678901234567890, "orders": 3}]}`))
	require.NoError(t, err)
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("list accounts"))
	conv.Append(format.BuildBotMessage(resp))

	tbl, err := TableFromConversation(conv)
	require.NoError(t, err)
	require.Equal(t, "12345678901234567890", tbl.Rows[0][0])
	require.Equal(t, int64(3), tbl.Rows[0][1])

	data, err := NewCSVExporter(nil).Export(conv)
	require.NoError(t, err)
	require.Contains(t, string(data), "12345678901234567890,3")

	data, err = NewXLSXExporter(nil).Export(conv)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	id, err := f.GetCellValue(DefaultSheetName, "A2")
	require.NoError(t, err)
	require.Equal(t, "12345678901234567890", id)
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestMarkdownExporter(t *testing.T) {
	data, err := NewMarkdownExporter(nil).Export(testConversation(t))
	require.NoError(t, err)
	out := string(data)

	require.True(t, strings.HasPrefix(out, "---\n"))
	require.Contains(t, out, "generator: querychat")
	require.Contains(t, out, "# List orders by customer")
	require.Contains(t, out, "| Customer Name | Order Total | Avg Price | Shipped |")
	require.Contains(t, out, "| Bob \\| Co | 7 |  | false |")
	require.Contains(t, out, "**2**")
	require.Contains(t, out, "```sql\nSELECT customer_name")
}

func TestMarkdownExporter_YAMLNewlineEscaped(t *testing.T) {
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("Test\nInjection: malicious"))

	data, err := NewMarkdownExporter(nil).Export(conv)
	require.NoError(t, err)

	for _, line := range strings.Split(string(data), "\n")[:8] {
		require.False(t, strings.HasPrefix(line, "Injection:"), "newline not escaped in title")
	}
}

func TestMarkdownExporter_Empty(t *testing.T) {
	_, err := NewMarkdownExporter(nil).Export(model.NewConversation())
	require.Error(t, err)
}

func TestJSONExporter(t *testing.T) {
	conv := testConversation(t)
	data, err := NewJSONExporter(nil).Export(conv)
	require.NoError(t, err)

	var doc struct {
		Generator string           `json:"generator"`
		ID        string           `json:"id"`
		Messages  []*model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "querychat", doc.Generator)
	require.Equal(t, conv.ID, doc.ID)
	require.Len(t, doc.Messages, 4)
	require.Equal(t, model.KindTable, doc.Messages[1].Kind)
}

// =============================================================================
// FILE TESTS
// =============================================================================

func TestExportToFile_TableName(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	exp, err := ForFormat("xlsx", opts)
	require.NoError(t, err)

	path, err := ExportToFile(testConversation(t), exp, opts)
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))

	base := filepath.Base(path)
	require.True(t, strings.HasPrefix(base, "query_results_List_orders_by_customer_"), base)
	require.Equal(t, ".xlsx", filepath.Ext(base))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportToFile_TranscriptName(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()

	path, err := ExportToFile(testConversation(t), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(path), "conversation_"))
}

func TestWriteTable(t *testing.T) {
	tbl, err := TableFromConversation(testConversation(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "orders.csv")
	require.NoError(t, WriteTable(tbl, path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "Customer Name,"))

	err = WriteTable(tbl, filepath.Join(t.TempDir(), "orders.md"), nil)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"xlsx", ".XLSX", "csv", "md", "markdown", "json"} {
		_, err := ForFormat(name, nil)
		require.NoError(t, err, name)
	}
	_, err := ForFormat("html", nil)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Top 10 customers?": "Top_10_customers",
		"a/b\\c:d":          "a-b-c-d",
		"":                  "export",
		"???":               "export",
		"ünïcode names":     "ünïcode_names",
	}
	for in, want := range tests {
		require.Equal(t, want, sanitizeFilename(in), in)
	}
}
