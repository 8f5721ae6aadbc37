// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ai provides the HTTP client for the Vita answer service.
package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:      serverURL,
		Timeout:      5 * time.Second,
		DefaultModel: "pulse-1",
	})
}

// =============================================================================
// SINGLE-SHOT TESTS
// =============================================================================

func TestClient_Ask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/query" {
			t.Errorf("path = %s, want /v1/query", r.URL.Path)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("single-shot request should have stream=false")
		}
		if req.Model != "pulse-1" {
			t.Errorf("model = %s, want default pulse-1", req.Model)
		}

		json.NewEncoder(w).Encode(Response{
			Content: "Your average was 122/79.",
			Sources: []Source{{Title: "Reading log"}},
			Meta: ResponseMeta{
				Model:            "pulse-1",
				ProcessingMillis: 840,
				CompletionTokens: 9,
			},
		})
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Ask(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "what was my average BP"}},
	})
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if resp.Content != "Your average was 122/79." {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("sources = %d, want 1", len(resp.Sources))
	}
	if resp.Meta.ProcessingTime != 840*time.Millisecond {
		t.Errorf("processing time = %v, want 840ms", resp.Meta.ProcessingTime)
	}
}

func TestClient_AskModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Ask(context.Background(), Request{Model: "nope"})
	if !IsModelNotFound(err) {
		t.Errorf("error = %v, want model-not-found", err)
	}
}

func TestClient_AskServiceErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(serviceError{Error: "temperature out of range"})
	}))
	defer server.Close()

	_, err := testClient(server.URL).Ask(context.Background(), Request{Temperature: 99})
	if err == nil || err.Error() != "temperature out of range" {
		t.Errorf("error = %v, want service message surfaced", err)
	}
}

func TestClient_AskServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	_, err := testClient(server.URL).Ask(context.Background(), Request{})
	if !IsNotRunning(err) {
		t.Errorf("error = %v, want not-running", err)
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestClient_AskStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/query/stream" {
			t.Errorf("path = %s, want /v1/query/stream", r.URL.Path)
		}
		var req Request
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("streaming request should have stream=true")
		}

		w.Write([]byte(`{"model":"pulse-1","content":"Your "}` + "\n"))
		w.Write([]byte(`{"content":"trend is "}` + "\n"))
		w.Write([]byte("not json\n")) // malformed lines are skipped
		w.Write([]byte(`{"content":"stable."}` + "\n"))
		w.Write([]byte(`{"done":true,"done_reason":"stop","sources":[{"title":"BP log"}],"memory_context_refs":["mem_1"],"processing_ms":1200,"completion_tokens":3}` + "\n"))
	}))
	defer server.Close()

	acc := NewStreamAccumulator()
	var chunks []StreamChunk
	err := testClient(server.URL).AskStream(context.Background(), Request{}, func(chunk StreamChunk) {
		chunks = append(chunks, chunk)
		acc.Add(chunk)
	})
	if err != nil {
		t.Fatalf("AskStream() error: %v", err)
	}

	if got := acc.GetContent(); got != "Your trend is stable." {
		t.Errorf("accumulated = %q", got)
	}
	if !acc.IsDone() {
		t.Error("accumulator should be done")
	}
	if len(acc.Sources) != 1 || acc.Sources[0].Title != "BP log" {
		t.Errorf("sources = %+v", acc.Sources)
	}

	final := chunks[len(chunks)-1]
	if !final.Done || final.DoneReason != "stop" {
		t.Errorf("final chunk = %+v", final)
	}
	if final.ProcessingTime != 1200*time.Millisecond {
		t.Errorf("processing time = %v", final.ProcessingTime)
	}
	if len(final.MemoryContextRefs) != 1 {
		t.Errorf("memory refs = %v", final.MemoryContextRefs)
	}
	if final.Model != "pulse-1" {
		t.Errorf("final chunk model = %q, want carried from first line", final.Model)
	}
}

func TestClient_AskStreamCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":"first"}` + "\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		close(started)
		// Hold the stream open until the client gives up.
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := testClient(server.URL).AskStream(ctx, Request{}, func(StreamChunk) {})
	if err != context.Canceled {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestClient_AskStreamChanDeliversErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var last StreamChunk
	for chunk := range testClient(server.URL).AskStreamChan(context.Background(), Request{}) {
		last = chunk
	}
	if !IsModelNotFound(last.Error) {
		t.Errorf("final chunk error = %v, want model-not-found", last.Error)
	}
}

// =============================================================================
// CAPABILITY TESTS
// =============================================================================

func TestSupportsStreaming(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"pulse-1", true},
		{"pulse-1-mini", true},
		{"pulse-vision", false},
		{"future-model", true}, // unknown defaults to streaming
	}
	for _, tt := range tests {
		if got := SupportsStreaming(tt.model); got != tt.want {
			t.Errorf("SupportsStreaming(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestClient_ConfigDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})
	cfg := c.GetConfig()
	if cfg.BaseURL == "" || cfg.Timeout == 0 || cfg.DefaultModel == "" {
		t.Errorf("zero-value config fields not defaulted: %+v", cfg)
	}
}
