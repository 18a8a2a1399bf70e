// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/navigate"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".xlsx", ".md").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// TableExporter is an Exporter that writes a single result table.
type TableExporter interface {
	Exporter

	// ExportTable converts one table to the target format.
	ExportTable(t *Table) ([]byte, error)
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata includes a metadata header in transcripts.
	IncludeMetadata bool

	// IncludeTimestamps includes per-message timestamps in transcripts.
	IncludeTimestamps bool

	// IncludeQuery includes the backend-generated query with each answer.
	IncludeQuery bool

	// SheetName names the worksheet of XLSX exports.
	// Default: "Results"
	SheetName string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		OpenAfterExport:   false,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeQuery:      true,
		SheetName:         DefaultSheetName,
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports a conversation to a file using the specified exporter.
// Returns the output file path or an error.
//
// Table exports are named query_results_<question>_<timestamp><ext>,
// transcripts conversation_<title>_<timestamp><ext>.
func ExportToFile(conv *model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	prefix, subject := "conversation", conversationTitle(conv)
	if _, ok := exporter.(TableExporter); ok {
		prefix = "query_results"
		if t, err := TableFromConversation(conv); err == nil && t.Question != "" {
			subject = t.Question
		}
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%s%s",
		prefix,
		sanitizeFilename(subject),
		timestamp,
		exporter.FileExtension(),
	)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	if opts.OpenAfterExport {
		if err := navigate.Open(outputPath); err != nil {
			// Non-fatal: the file exists.
			log.Printf("[export] could not open %s: %v", outputPath, err)
		}
	}

	return outputPath, nil
}

// WriteTable writes a table to an explicit path, picking the exporter from
// the file extension (".xlsx" or ".csv").
func WriteTable(t *Table, path string, opts *Options) error {
	exp, err := ForFormat(filepath.Ext(path), opts)
	if err != nil {
		return err
	}
	te, ok := exp.(TableExporter)
	if !ok {
		return fmt.Errorf("%w: %s cannot hold a single table", ErrUnknownFormat, filepath.Ext(path))
	}

	content, err := te.ExportTable(t)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// conversationTitle picks the first user question as a title.
func conversationTitle(conv *model.Conversation) string {
	if conv == nil {
		return ""
	}
	for _, msg := range conv.Messages {
		if msg != nil && msg.Sender == model.SenderUser {
			return msg.Text
		}
	}
	return ""
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	maxLen := 40
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	// Replace problematic characters (Windows and Unix)
	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := []rune{}
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	// Trailing separators look odd before the timestamp.
	for len(result) > 0 && (result[len(result)-1] == '-' || result[len(result)-1] == '_') {
		result = result[:len(result)-1]
	}

	if len(result) == 0 {
		return "export"
	}

	return string(result)
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
