// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// FixtureKind names the canned answer chosen for a question.
type FixtureKind string

// Fixture kinds, in matching order.
const (
	FixtureError   FixtureKind = "error"
	FixtureCount   FixtureKind = "count"
	FixtureSummary FixtureKind = "summary"
	FixtureEmpty   FixtureKind = "empty"
	FixtureTable   FixtureKind = "table"
	FixtureText    FixtureKind = "text"
)

// Kinds lists every fixture kind.
var Kinds = []FixtureKind{
	FixtureError, FixtureCount, FixtureSummary, FixtureEmpty, FixtureTable, FixtureText,
}

// keywordRules maps keywords to fixtures. First match wins.
var keywordRules = []struct {
	kind     FixtureKind
	keywords []string
}{
	{FixtureError, []string{"fail"}},
	{FixtureCount, []string{"how many", "count"}},
	{FixtureSummary, []string{"summar"}},
	{FixtureEmpty, []string{"nothing", "empty"}},
	{FixtureTable, []string{"list", "show", "top"}},
}

// MatchFixture picks the fixture kind for a question.
func MatchFixture(question string) FixtureKind {
	q := strings.ToLower(question)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.kind
			}
		}
	}
	return FixtureText
}

// ============================================================================
// FIXTURE DATA
// ============================================================================

// ordersFixture is kept as raw JSON so column order survives the round trip.
const ordersFixture = `[
  {"order_id": 1001, "customer": "Acme Corp", "status": "shipped", "total": 1250.5, "created_at": "2025-01-14"},
  {"order_id": 1002, "customer": "Globex", "status": "pending", "total": 89.99, "created_at": "2025-01-15"},
  {"order_id": 1003, "customer": "Initech", "status": "shipped", "total": 430, "created_at": "2025-01-15"},
  {"order_id": 1004, "customer": "Umbrella", "status": "cancelled", "total": 0, "created_at": "2025-01-16"},
  {"order_id": 1005, "customer": "Hooli", "status": "shipped", "total": 15999.95, "created_at": "2025-01-17"},
  {"order_id": 1006, "customer": "Stark Industries", "status": "returned", "total": 312.4, "created_at": "2025-01-18"},
  {"order_id": 1007, "customer": "Wayne Enterprises", "status": "pending", "total": 77, "created_at": "2025-01-18"},
  {"order_id": 1008, "customer": "Acme Corp", "status": "shipped", "total": 2048, "created_at": "2025-01-19"}
]`

const (
	fixtureCount   = 1500
	fixtureSummary = "Orders rose 12% week over week. Most of the growth came from repeat customers, " +
		"and the cancellation rate held steady at 3%."
	fixtureText = "I can answer questions about orders and customers. " +
		"Try \"show the latest orders\" or \"how many orders shipped last week?\"."
	fixtureFailure = "simulated backend failure"
)

var topPattern = regexp.MustCompile(`\btop\s+(\d+)\b`)

// fixtureRows returns the order records, limited by a "top N" phrase.
func fixtureRows(question string) []json.RawMessage {
	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(ordersFixture), &rows); err != nil {
		return nil
	}
	if m := topPattern.FindStringSubmatch(strings.ToLower(question)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n < len(rows) {
			rows = rows[:n]
		}
	}
	return rows
}

// BuildFixture returns the HTTP status and JSON body answering a question.
func BuildFixture(question string) (FixtureKind, int, any) {
	kind := MatchFixture(question)
	switch kind {
	case FixtureError:
		return kind, 500, map[string]string{"error": fixtureFailure}
	case FixtureCount:
		return kind, 200, map[string]any{
			"count": fixtureCount,
			"query": "SELECT COUNT(*) FROM orders",
		}
	case FixtureSummary:
		return kind, 200, map[string]any{
			"summary": fixtureSummary,
			"query":   "SELECT date_trunc('week', created_at) AS week, COUNT(*) FROM orders GROUP BY 1",
		}
	case FixtureEmpty:
		return kind, 200, map[string]any{
			"data":  []json.RawMessage{},
			"query": "SELECT * FROM orders WHERE status = 'lost'",
		}
	case FixtureTable:
		rows := fixtureRows(question)
		return kind, 200, map[string]any{
			"data":  rows,
			"query": "SELECT order_id, customer, status, total, created_at FROM orders ORDER BY order_id LIMIT " + strconv.Itoa(len(rows)),
		}
	default:
		return kind, 200, map[string]any{"message": fixtureText}
	}
}
