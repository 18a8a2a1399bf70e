// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/querychat/internal/format"
	"github.com/jeranaias/querychat/internal/model"
	"github.com/jeranaias/querychat/internal/query"
)

func quietServer() *Server {
	return NewServer(0).WithLogger(log.New(io.Discard, "", 0))
}

func postQuery(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// FIXTURE TESTS
// =============================================================================

func TestMatchFixture(t *testing.T) {
	tests := []struct {
		question string
		want     FixtureKind
	}{
		{"How many orders shipped?", FixtureCount},
		{"count the customers", FixtureCount},
		{"Summarize last week", FixtureSummary},
		{"show the latest orders", FixtureTable},
		{"list customers", FixtureTable},
		{"top 3 orders by total", FixtureTable},
		{"show me nothing", FixtureEmpty},
		{"please fail", FixtureError},
		{"hello there", FixtureText},
		{"", FixtureText},
	}

	for _, tt := range tests {
		if got := MatchFixture(tt.question); got != tt.want {
			t.Errorf("MatchFixture(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestFixtureRows_Top(t *testing.T) {
	if got := len(fixtureRows("show orders")); got != 8 {
		t.Errorf("all rows = %d, want 8", got)
	}
	if got := len(fixtureRows("top 3 orders")); got != 3 {
		t.Errorf("top 3 = %d, want 3", got)
	}
	if got := len(fixtureRows("top 100 orders")); got != 8 {
		t.Errorf("top 100 = %d, want 8", got)
	}
}

func TestFixtureRows_KeepColumnOrder(t *testing.T) {
	_, _, body := BuildFixture("list orders")
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := query.DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	records, err := format.DecodeRecords(resp.Data)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	want := []string{"order_id", "customer", "status", "total", "created_at"}
	got := records[0].Keys
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestNewServer(t *testing.T) {
	s := NewServer(0)
	if s.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", s.Port(), DefaultPort)
	}
	if NewServer(9999).Port() != 9999 {
		t.Error("custom port not kept")
	}
}

func TestHandleHealth(t *testing.T) {
	s := quietServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Version != Version {
		t.Errorf("health = %+v", health)
	}
}

func TestHandleQuery_Kinds(t *testing.T) {
	s := quietServer()
	h := s.Handler()

	tests := []struct {
		question string
		status   int
		field    string
	}{
		{"how many orders?", http.StatusOK, "count"},
		{"summarize orders", http.StatusOK, "summary"},
		{"show orders", http.StatusOK, "data"},
		{"hello", http.StatusOK, "message"},
		{"fail please", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		rec := postQuery(t, h, `{"query":"`+tt.question+`"}`)
		if rec.Code != tt.status {
			t.Errorf("%q: status = %d, want %d", tt.question, rec.Code, tt.status)
			continue
		}
		var body map[string]json.RawMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%q: decode: %v", tt.question, err)
			continue
		}
		if _, ok := body[tt.field]; !ok {
			t.Errorf("%q: body %s missing %q", tt.question, rec.Body.String(), tt.field)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Errorf("%q: missing X-Request-Id", tt.question)
		}
	}

	if got := s.Stats().TotalRequests; got != int64(len(tests)) {
		t.Errorf("TotalRequests = %d, want %d", got, len(tests))
	}
	if got := s.Stats().Count(FixtureCount); got != 1 {
		t.Errorf("count fixtures = %d, want 1", got)
	}
}

func TestHandleQuery_BadRequests(t *testing.T) {
	h := quietServer().Handler()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{not json`, http.StatusBadRequest},
		{"empty query", `{"query":"   "}`, http.StatusBadRequest},
		{"too long", `{"query":"` + strings.Repeat("a", query.MaxQueryLength+1) + `"}`, http.StatusBadRequest},
		{"too large", `{"query":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postQuery(t, h, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandleQuery_WrongMethod(t *testing.T) {
	h := quietServer().Handler()
	req := httptest.NewRequest(http.MethodGet, "/query", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	s := quietServer()
	h := s.Handler()
	postQuery(t, h, `{"query":"list orders"}`)
	postQuery(t, h, `{"query":"list customers"}`)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var stats StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", stats.TotalRequests)
	}
	if stats.ByKind["table"] != 2 {
		t.Errorf("ByKind[table] = %d, want 2", stats.ByKind["table"])
	}
}

// =============================================================================
// END-TO-END: CLIENT + FORMAT AGAINST THE MOCK
// =============================================================================

func newTestClient(ts *httptest.Server) *query.Client {
	return query.NewClient(ts.URL+"/query",
		query.WithRateLimit(0, 0),
		query.WithMaxRetries(1),
		query.WithLogger(log.New(io.Discard, "", 0)),
	)
}

func TestEndToEnd_DisplayKinds(t *testing.T) {
	ts := httptest.NewServer(quietServer().Handler())
	defer ts.Close()
	client := newTestClient(ts)

	tests := []struct {
		question string
		kind     model.DisplayKind
		text     string
		rows     int
	}{
		{"how many orders?", model.KindCount, "There are 1,500 matching records.", 0},
		{"summarize orders", model.KindSummary, fixtureSummary, 0},
		{"top 3 orders", model.KindTable, "", 3},
		{"show me nothing", model.KindText, format.NoResultsText, 0},
		{"hi", model.KindText, fixtureText, 0},
	}

	for _, tt := range tests {
		resp, err := client.Ask(context.Background(), query.Request{Query: tt.question})
		if err != nil {
			t.Fatalf("%q: Ask: %v", tt.question, err)
		}
		msg := format.BuildBotMessage(resp)
		if msg.Kind != tt.kind {
			t.Errorf("%q: kind = %q, want %q", tt.question, msg.Kind, tt.kind)
		}
		if tt.text != "" && msg.Text != tt.text {
			t.Errorf("%q: text = %q, want %q", tt.question, msg.Text, tt.text)
		}
		if len(msg.Rows) != tt.rows {
			t.Errorf("%q: rows = %d, want %d", tt.question, len(msg.Rows), tt.rows)
		}
	}
}

func TestEndToEnd_TableKeepsRawData(t *testing.T) {
	ts := httptest.NewServer(quietServer().Handler())
	defer ts.Close()

	resp, err := newTestClient(ts).Ask(context.Background(), query.Request{Query: "list orders"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	msg := format.BuildBotMessage(resp)
	if !msg.IsTable() {
		t.Fatalf("expected table, got %q", msg.Kind)
	}
	if len(msg.Headers) != 5 {
		t.Errorf("headers = %v", msg.Headers)
	}
	if !bytes.Contains(msg.RawData, []byte(`"order_id"`)) {
		t.Errorf("raw data lost: %s", msg.RawData)
	}
	if !strings.HasPrefix(msg.Query, "SELECT order_id") {
		t.Errorf("query = %q", msg.Query)
	}
}

func TestEndToEnd_BackendError(t *testing.T) {
	ts := httptest.NewServer(quietServer().Handler())
	defer ts.Close()

	_, err := newTestClient(ts).Ask(context.Background(), query.Request{Query: "fail"})
	var be *query.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BackendError", err)
	}
	if be.Status != http.StatusInternalServerError || be.Message != fixtureFailure {
		t.Errorf("backend error = %+v", be)
	}
}

func TestEndToEnd_Ping(t *testing.T) {
	ts := httptest.NewServer(quietServer().Handler())
	defer ts.Close()

	if err := newTestClient(ts).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestLatency_ClientTimeout(t *testing.T) {
	s := quietServer().WithLatency(500 * time.Millisecond)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(ts).Ask(ctx, query.Request{Query: "hi"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := quietServer()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	client := query.NewClient("http://"+ln.Addr().String()+"/query", query.WithRateLimit(0, 0))
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := client.Ping(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not come up")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v, want nil", err)
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	if err := NewServer(0).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}
