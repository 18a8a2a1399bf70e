// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ScalarColumn names the single column used when rows are not objects.
const ScalarColumn = "value"

// ErrNotArray is returned when result data is not a JSON array.
var ErrNotArray = errors.New("result data is not an array")

// Record is one result row with its keys in backend order.
type Record struct {
	Keys   []string
	Values map[string]any
}

// Get returns the value for key and whether the key exists.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// DecodeRecords decodes a JSON array of rows.
//
// Numbers are kept as json.Number. Nested objects and arrays are kept as
// compact JSON strings. Scalar rows become a single ScalarColumn record.
func DecodeRecords(raw json.RawMessage) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, ErrNotArray
	}

	var records []Record
	for dec.More() {
		rec, err := decodeRow(dec)
		if err != nil {
			return nil, fmt.Errorf("decode row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return records, nil
}

// decodeRow reads one array element.
func decodeRow(dec *json.Decoder) (Record, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Record{}, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		v, err := decodeValue(trimmed)
		if err != nil {
			return Record{}, err
		}
		return Record{
			Keys:   []string{ScalarColumn},
			Values: map[string]any{ScalarColumn: v},
		}, nil
	}

	obj := json.NewDecoder(bytes.NewReader(trimmed))
	obj.UseNumber()
	if _, err := obj.Token(); err != nil {
		return Record{}, err
	}

	rec := Record{Values: make(map[string]any)}
	for obj.More() {
		keyTok, err := obj.Token()
		if err != nil {
			return Record{}, err
		}
		key, _ := keyTok.(string)

		var field json.RawMessage
		if err := obj.Decode(&field); err != nil {
			return Record{}, err
		}
		v, err := decodeValue(field)
		if err != nil {
			return Record{}, err
		}
		if _, dup := rec.Values[key]; !dup {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Values[key] = v
	}
	return rec, nil
}

// decodeValue converts a JSON value into nil, bool, json.Number, string, or
// compact JSON text for containers.
func decodeValue(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Columns returns the union of record keys in first-seen order.
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range records {
		for _, k := range rec.Keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// BuildTable derives display headers and formatted rows from records.
// Missing cells are empty strings.
func BuildTable(records []Record) (headers []string, rows [][]string) {
	cols := Columns(records)
	headers = make([]string, len(cols))
	for i, c := range cols {
		headers[i] = HumanizeHeader(c)
	}

	rows = make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			if v, ok := rec.Values[c]; ok {
				row[i] = FormatCell(v)
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}
