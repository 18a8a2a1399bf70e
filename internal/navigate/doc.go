// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package navigate turns a selected table cell into a record view or link.
//
// A cell is addressed by its 1-based row and a column given either as a
// 1-based index or as a column name. The resolved Target carries the full
// backend record, which Detail renders and Link expands into a URL.
package navigate
