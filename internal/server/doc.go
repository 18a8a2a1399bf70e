// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local mock of the query backend.
//
// The mock answers natural-language questions with canned fixtures so the
// client, the renderers and the exporters can be exercised without a real
// database. It is not a query planner: the fixture is picked by keyword.
//
// # Endpoints
//
//   - POST /query  - Answer a question ({"query": "..."})
//   - GET  /health - Health check
//   - GET  /stats  - Request counters per fixture kind
//
// # Fixture Selection
//
// Keywords are matched case-insensitively, first match wins:
//
//   - "fail"                 - 500 with an error body
//   - "count", "how many"    - {"count": N}
//   - "summar"               - {"summary": "..."}
//   - "nothing", "empty"     - {"data": []}
//   - "list", "show", "top"  - {"data": [...]} ("top N" limits the rows)
//   - anything else          - {"message": "..."}
//
// # Middleware
//
// Requests pass through recovery, request logging, CORS and a per-client
// token bucket rate limiter.
//
// # Usage
//
//	srv := server.NewServer(8787)
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
