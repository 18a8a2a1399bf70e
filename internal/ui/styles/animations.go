// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// QuerySpinner is shown while a question is in flight. ASCII frames keep it
// readable on terminals without Unicode fonts.
var QuerySpinner = spinner.Spinner{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    time.Second / 10,
}

// DotsSpinner is the quieter alternative used by the line REPL.
var DotsSpinner = spinner.Spinner{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    time.Second / 6,
}

// FrameAt returns the spinner frame for an elapsed time, for callers that
// draw without a bubbletea tick loop.
func FrameAt(s spinner.Spinner, elapsed time.Duration) string {
	if len(s.Frames) == 0 || s.FPS <= 0 {
		return ""
	}
	return s.Frames[int(elapsed/s.FPS)%len(s.Frames)]
}

// ElapsedText formats a wait time for the status bar: "0.4s", "12s", "2m05s".
func ElapsedText(d time.Duration) string {
	switch {
	case d < 0:
		return "0.0s"
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		m := int(d / time.Minute)
		s := int((d % time.Minute) / time.Second)
		return fmt.Sprintf("%dm%02ds", m, s)
	}
}
