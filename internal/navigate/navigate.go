// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
)

// Errors returned by Resolve.
var (
	ErrNotTable      = errors.New("message is not a table result")
	ErrRowOutOfRange = errors.New("row out of range")
	ErrUnknownColumn = errors.New("unknown column")
)

// =============================================================================
// TARGET
// =============================================================================

// Target is one resolved table cell.
type Target struct {
	MessageID string

	// Row is 1-based.
	Row int

	// Key is the backend column name, Header its display form.
	Key    string
	Header string

	// Value is the raw cell value.
	Value any

	// Record is the whole row.
	Record format.Record
}

// DisplayValue returns the cell formatted for display.
func (t *Target) DisplayValue() string {
	return format.FormatCell(t.Value)
}

// Resolve picks a cell from a table message.
//
// column may be empty (first column), a 1-based index, a backend key or a
// display header. Names match case-insensitively.
func Resolve(msg *model.Message, row int, column string) (*Target, error) {
	if msg == nil || !msg.IsTable() {
		return nil, ErrNotTable
	}

	records, err := records(msg)
	if err != nil {
		return nil, err
	}
	if row < 1 || row > len(records) {
		return nil, fmt.Errorf("%w: %d (table has %d rows)", ErrRowOutOfRange, row, len(records))
	}

	keys := format.Columns(records)
	idx, err := columnIndex(keys, column)
	if err != nil {
		return nil, err
	}

	rec := records[row-1]
	key := keys[idx]
	value, _ := rec.Get(key)

	return &Target{
		MessageID: msg.ID,
		Row:       row,
		Key:       key,
		Header:    format.HumanizeHeader(key),
		Value:     value,
		Record:    rec,
	}, nil
}

// records recovers the backend rows, falling back to display cells.
func records(msg *model.Message) ([]format.Record, error) {
	if len(msg.RawData) > 0 {
		recs, err := format.DecodeRecords(msg.RawData)
		if err != nil {
			return nil, fmt.Errorf("decode table rows: %w", err)
		}
		return recs, nil
	}

	recs := make([]format.Record, 0, len(msg.Rows))
	for _, r := range msg.Rows {
		rec := format.Record{Keys: msg.Headers, Values: make(map[string]any, len(r))}
		for i, h := range msg.Headers {
			if i < len(r) {
				rec.Values[h] = r[i]
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// columnIndex resolves a column reference to an index into keys.
func columnIndex(keys []string, column string) (int, error) {
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: table has no columns", ErrUnknownColumn)
	}

	column = strings.TrimSpace(column)
	if column == "" {
		return 0, nil
	}

	if n, err := strconv.Atoi(column); err == nil {
		if n < 1 || n > len(keys) {
			return 0, fmt.Errorf("%w: %d (table has %d columns)", ErrUnknownColumn, n, len(keys))
		}
		return n - 1, nil
	}

	for i, k := range keys {
		if strings.EqualFold(k, column) || strings.EqualFold(format.HumanizeHeader(k), column) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
}
