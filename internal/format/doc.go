// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package format turns backend answers into display-ready messages.
//
// Everything here is pure: no I/O, no shared state. The main entry point is
// BuildBotMessage, which classifies a response (table, count, summary or
// plain text) and fills exactly the message fields that kind needs.
//
// Table rows are decoded with their original key order so columns appear
// the way the backend listed them.
package format
