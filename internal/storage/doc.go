// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the chat history between runs.
//
// The history is one conversation. It is kept either as a single JSON
// document or in a SQLite database, and is bounded by a byte quota: a save
// that would exceed the quota first trims the history to its newest
// messages.
//
// # Key Types
//
//   - Store: Load / Save / Clear for one history
//   - FileStore: JSON document written atomically
//   - SQLiteStore: message rows in a SQLite database
//   - Watcher: reports changes made by another process
//
// # Usage
//
//	store, err := storage.NewStore(storage.Options{Backend: "file", Dir: dir})
//	conv, err := store.Load(ctx)
//	conv.Append(msg)
//	err = store.Save(ctx, conv)
//
// # Storage Location
//
// The history is stored in ~/.querychat/ unless a data directory is
// configured.
package storage
