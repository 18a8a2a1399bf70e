// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view of querychat.

The chat package implements the terminal chat interface on the Bubble Tea
framework. The user types a question, it is sent to the query backend, and
the answer is rendered according to its display kind.

# Key Components

## Model (model.go)

The Model struct is the central Bubble Tea model:
  - Conversation restored from and persisted to a storage.Store
  - Text input, scrolling viewport and pending spinner
  - Reload on external history changes reported by a storage.Watcher

## Update Loop (update.go)

Handles keyboard input, backend answers, history loads and status expiry.
Every user question and every answer is saved as soon as it is appended.
Answers to superseded requests are dropped.

## Rendering (render.go, view.go)

  - Tables through lipgloss/table, collapsed to a preview until expanded
  - Counts as a badge
  - Summaries and text as glamour markdown
  - Generated queries highlighted with chroma

## Commands (commands.go)

Slash commands: /help, /clear, /export [format], /expand [n],
/open <row> [column], /copy, /query and /quit.

# Usage

	m := chat.New(theme, chat.Options{
		Client:   client,
		Store:    store,
		Watcher:  watcher,
		Config:   cfg,
		Endpoint: cfg.Backend.Endpoint,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
*/
package chat
