// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned for an export format name that is not supported.
var ErrUnknownFormat = errors.New("unsupported export format")

// Format names accepted by ForFormat.
const (
	FormatXLSX     = "xlsx"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// Formats lists the supported format names, table formats first.
func Formats() []string {
	return []string{FormatXLSX, FormatCSV, FormatMarkdown, FormatJSON}
}

// ForFormat returns the exporter for a format name or file extension.
// Names are case-insensitive and may carry a leading dot.
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "xlsx", "excel", "spreadsheet":
		return NewXLSXExporter(opts), nil
	case "csv":
		return NewCSVExporter(opts), nil
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
	}
}
