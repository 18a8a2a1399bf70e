// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package query

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Request is the body posted to the backend.
type Request struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Response is a decoded backend answer. Fields are pointers or raw JSON so
// that presence can be told apart from zero values.
type Response struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Count   *json.Number    `json:"count,omitempty"`
	Summary *string         `json:"summary,omitempty"`
	Query   string          `json:"query,omitempty"`
	Message string          `json:"message,omitempty"`

	// Raw is the complete body as received.
	Raw json.RawMessage `json:"-"`
}

// wireResponse accepts the field aliases seen across backends.
type wireResponse struct {
	Data     json.RawMessage `json:"data"`
	Count    *json.Number    `json:"count"`
	Summary  *string         `json:"summary"`
	Query    string          `json:"query"`
	SQL      string          `json:"sql"`
	Message  string          `json:"message"`
	Response string          `json:"response"`
	Answer   string          `json:"answer"`
}

// DecodeResponse parses a backend body into a Response.
func DecodeResponse(body []byte) (*Response, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var w wireResponse
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	resp := &Response{
		Count:   w.Count,
		Summary: w.Summary,
		Query:   firstNonEmpty(w.Query, w.SQL),
		Message: firstNonEmpty(w.Message, w.Response, w.Answer),
		Raw:     append(json.RawMessage(nil), body...),
	}
	if !isNull(w.Data) {
		resp.Data = w.Data
	}
	return resp, nil
}

// HasData reports whether the backend returned a data field (possibly empty).
func (r *Response) HasData() bool {
	return len(r.Data) > 0
}

// HasCount reports whether the backend returned a count.
func (r *Response) HasCount() bool {
	return r.Count != nil
}

// HasSummary reports whether the backend returned a summary.
func (r *Response) HasSummary() bool {
	return r.Summary != nil
}

// CountValue returns the count as int64. Fractional counts are truncated.
func (r *Response) CountValue() (int64, bool) {
	if r.Count == nil {
		return 0, false
	}
	if n, err := r.Count.Int64(); err == nil {
		return n, true
	}
	if f, err := r.Count.Float64(); err == nil {
		return int64(f), true
	}
	return 0, false
}

// apiErrorResponse covers the error bodies the backend may send.
type apiErrorResponse struct {
	Error  json.RawMessage `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// errorText extracts a human-readable error from a backend error body.
func errorText(body []byte) string {
	var e apiErrorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		for _, raw := range []json.RawMessage{e.Error, e.Detail} {
			if s := rawText(raw); s != "" {
				return s
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// rawText returns a string value, or a nested {"message": ...} value.
func rawText(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
