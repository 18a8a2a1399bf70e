// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigate

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/querychat/internal/format"
)

// Field is one labelled value of a record detail view.
type Field struct {
	Label string
	Value string
}

// Fields lists a record's values in column order with display labels.
func Fields(rec format.Record) []Field {
	fields := make([]Field, 0, len(rec.Keys))
	for _, k := range rec.Keys {
		v, _ := rec.Get(k)
		fields = append(fields, Field{
			Label: format.HumanizeHeader(k),
			Value: format.FormatCell(v),
		})
	}
	return fields
}

// Detail renders a record as aligned "Label  value" lines.
func Detail(rec format.Record) string {
	fields := Fields(rec)

	width := 0
	for _, f := range fields {
		if w := runewidth.StringWidth(f.Label); w > width {
			width = w
		}
	}

	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(runewidth.FillRight(f.Label, width))
		sb.WriteString("  ")
		sb.WriteString(f.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}
