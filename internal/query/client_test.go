// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{WithLogger(quietLogger()), WithRateLimit(0, 0)}
	return NewClient(url, append(base, opts...)...)
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestAsk_PostsQueryAndDecodesTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "top customers", req.Query)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"name":"Ada","total":1200.5}],"sql":"SELECT name, total FROM customers"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithHeaders(map[string]string{"X-Api-Key": "secret"}))
	resp, err := client.Ask(context.Background(), Request{Query: "  top customers  "})
	require.NoError(t, err)
	require.True(t, resp.HasData())
	require.False(t, resp.HasCount())
	require.Equal(t, "SELECT name, total FROM customers", resp.Query)
	require.JSONEq(t, `[{"name":"Ada","total":1200.5}]`, string(resp.Data))
}

func TestAsk_EmptyQuery(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Ask(context.Background(), Request{Query: "   "})
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAsk_NotConfigured(t *testing.T) {
	client := newTestClient("")
	_, err := client.Ask(context.Background(), Request{Query: "hi"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestAsk_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"could not understand the question"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Ask(context.Background(), Request{Query: "???"})
	var be *BackendError
	require.True(t, errors.As(err, &be))
	require.Equal(t, http.StatusBadRequest, be.Status)
	require.Equal(t, "could not understand the question", be.Message)
	require.Equal(t, int32(1), calls.Load())
}

func TestAsk_RateLimitedNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, WithMaxRetries(3)).Ask(context.Background(), Request{Query: "again"})
	require.ErrorIs(t, err, ErrRateLimited)
	require.NotContains(t, err.Error(), "max retries exceeded")
	require.Equal(t, int32(1), calls.Load())
}

func TestAsk_ThrottlesBeyondBurst(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"count": 1}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithRateLimit(0.5, 2))
	for i := 0; i < 2; i++ {
		_, err := client.Ask(context.Background(), Request{Query: "within burst"})
		require.NoError(t, err)
	}

	// The next token is two seconds away, past this deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Ask(ctx, Request{Query: "over burst"})
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestNewClient_DefaultRateLimit(t *testing.T) {
	c := NewClient("http://localhost:8787/query")
	require.NotNil(t, c.limiter)
	require.Equal(t, rate.Limit(DefaultRatePerSec), c.limiter.Limit())
	require.Equal(t, DefaultBurst, c.limiter.Burst())

	c = NewClient("http://localhost:8787/query", WithRateLimit(0, 0))
	require.Nil(t, c.limiter)
}

func TestAsk_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":{"message":"upstream down"}}`))
			return
		}
		w.Write([]byte(`{"count": 42}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL, WithMaxRetries(2)).Ask(context.Background(), Request{Query: "how many"})
	require.NoError(t, err)
	n, ok := resp.CountValue()
	require.True(t, ok)
	require.Equal(t, int64(42), n)
	require.Equal(t, int32(2), calls.Load())
}

func TestAsk_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Ask(context.Background(), Request{Query: "q"})
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestAsk_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).Ask(ctx, Request{Query: "slow"})
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	require.NoError(t, newTestClient(server.URL+"/query").Ping(context.Background()))

	err := newTestClient(server.URL+"/query", WithHealthPath("/missing")).Ping(context.Background())
	var be *BackendError
	require.True(t, errors.As(err, &be))
	require.Equal(t, http.StatusNotFound, be.Status)
}

// =============================================================================
// DECODE TESTS
// =============================================================================

func TestDecodeResponse_Presence(t *testing.T) {
	tests := []struct {
		name                   string
		body                   string
		data, count, summary   bool
		message                string
	}{
		{"empty object", `{}`, false, false, false, ""},
		{"null data", `{"data":null,"message":"hi"}`, false, false, false, "hi"},
		{"empty data", `{"data":[]}`, true, false, false, ""},
		{"zero count", `{"count":0}`, false, true, false, ""},
		{"empty summary", `{"summary":""}`, false, false, true, ""},
		{"answer alias", `{"answer":"forty two"}`, false, false, false, "forty two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse([]byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.data, resp.HasData())
			require.Equal(t, tt.count, resp.HasCount())
			require.Equal(t, tt.summary, resp.HasSummary())
			require.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	require.Equal(t, 500*time.Millisecond, calculateBackoff(1))
	require.Equal(t, time.Second, calculateBackoff(2))
	require.Equal(t, retryMaxDelay, calculateBackoff(10))
}
