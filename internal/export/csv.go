// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jeranaias/querychat/internal/model"
)

// =============================================================================
// CSV EXPORTER
// =============================================================================

// CSVExporter exports the latest table result as comma-separated values.
// Cells carry raw values, not display formatting.
type CSVExporter struct {
	options *Options
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(opts *Options) *CSVExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &CSVExporter{options: opts}
}

// Export writes the most recent table result of the conversation.
func (e *CSVExporter) Export(conv *model.Conversation) ([]byte, error) {
	t, err := TableFromConversation(conv)
	if err != nil {
		return nil, err
	}
	return e.ExportTable(t)
}

// ExportTable writes one table with a header row.
func (e *CSVExporter) ExportTable(t *Table) ([]byte, error) {
	if t == nil || t.Width() == 0 {
		return nil, ErrNoTable
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, t.Width())
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = rawString(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for CSV.
func (e *CSVExporter) FileExtension() string {
	return ".csv"
}

// MimeType returns the MIME type for CSV.
func (e *CSVExporter) MimeType() string {
	return "text/csv"
}
