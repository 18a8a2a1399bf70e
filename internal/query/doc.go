// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package query provides the HTTP client for the natural-language query
// backend.
//
// The backend owns all query planning. This package only sends the user's
// free text and decodes whatever shape comes back:
//
//	{"data": [...], "count": 12, "summary": "...", "query": "SELECT ...", "message": "..."}
//
// Any subset of those fields may be present. Deciding how to render the
// answer belongs to package format.
//
// # Usage
//
//	client := query.NewClient("http://localhost:8000/query",
//	    query.WithTimeout(30*time.Second))
//	resp, err := client.Ask(ctx, query.Request{Query: "top 5 customers"})
package query
