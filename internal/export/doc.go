// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes query results and conversations to files.
//
// The tabular exporters (XLSX, CSV) take the most recent table result of a
// conversation. The transcript exporters (Markdown, JSON) write the whole
// conversation.
//
// # Key Types
//
//   - Exporter: Export / FileExtension / MimeType
//   - Table: typed rows recovered from a table message
//   - Options: output directory and presentation switches
//
// # Usage
//
//	exp, err := export.ForFormat("xlsx", opts)
//	path, err := export.ExportToFile(conv, exp, opts)
package export
