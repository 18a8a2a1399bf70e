// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"github.com/jeranaias/querychat/internal/model"
)

// DefaultSheetName is the worksheet name used for result exports.
const DefaultSheetName = "Results"

// Column width bounds, in characters.
const (
	minColumnWidth = 8
	maxColumnWidth = 60
)

// =============================================================================
// XLSX EXPORTER
// =============================================================================

// XLSXExporter exports the latest table result as an Excel workbook.
type XLSXExporter struct {
	options *Options
}

// NewXLSXExporter creates a new XLSX exporter.
func NewXLSXExporter(opts *Options) *XLSXExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &XLSXExporter{options: opts}
}

// Export writes the most recent table result of the conversation.
func (e *XLSXExporter) Export(conv *model.Conversation) ([]byte, error) {
	t, err := TableFromConversation(conv)
	if err != nil {
		return nil, err
	}
	return e.ExportTable(t)
}

// ExportTable writes one table as a workbook with a single sheet.
func (e *XLSXExporter) ExportTable(t *Table) ([]byte, error) {
	if t == nil || t.Width() == 0 {
		return nil, ErrNoTable
	}

	sheet := e.options.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, t.Width())
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := append([]any(nil), row...)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	lastHeader, err := excelize.CoordinatesToCellName(t.Width(), 1)
	if err != nil {
		return nil, err
	}
	lastCell, err := excelize.CoordinatesToCellName(t.Width(), t.Len()+1)
	if err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#9BC2E6", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	if err := f.AutoFilter(sheet, "A1:"+lastCell, nil); err != nil {
		return nil, fmt.Errorf("add auto filter: %w", err)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	for i, w := range columnWidths(t) {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for XLSX.
func (e *XLSXExporter) FileExtension() string {
	return ".xlsx"
}

// MimeType returns the MIME type for XLSX.
func (e *XLSXExporter) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// columnWidths sizes each column to its widest cell, within bounds.
func columnWidths(t *Table) []float64 {
	widths := make([]float64, t.Width())
	for i, h := range t.Headers {
		widths[i] = float64(runewidth.StringWidth(h))
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			if w := float64(runewidth.StringWidth(rawString(v))); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i, w := range widths {
		w += 2
		if w < minColumnWidth {
			w = minColumnWidth
		}
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		widths[i] = w
	}
	return widths
}
