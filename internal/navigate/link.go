// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package navigate

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// Errors returned by Link.
var (
	ErrNoTemplate         = errors.New("no detail link template configured")
	ErrUnknownPlaceholder = errors.New("unknown link placeholder")
)

// placeholderPattern matches {name} placeholders in a link template.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Link expands a template for a target cell.
//
// {column} becomes the column key, {value} the cell value and {<key>} the
// value of that column in the same record. Values are URL-escaped.
func Link(template string, t *Target) (string, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return "", ErrNoTemplate
	}
	if t == nil {
		return "", ErrNotTable
	}

	var missing []string
	link := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		switch name {
		case "column":
			return escape(t.Key)
		case "value":
			return escape(plainValue(t.Value))
		}
		if v, ok := t.Record.Get(name); ok {
			return escape(plainValue(v))
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlaceholder, strings.Join(missing, ", "))
	}

	if _, err := url.Parse(link); err != nil {
		return "", fmt.Errorf("invalid link %q: %w", link, err)
	}
	return link, nil
}

// plainValue renders a value without display formatting, so ids keep their
// digits without separators.
func plainValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// escape percent-encodes a value for use in a path or query.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Open hands a URL or file path to the operating system's default handler.
func Open(target string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, target)
	case "darwin":
		cmd = exec.Command("open", target)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", target)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
