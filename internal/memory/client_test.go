// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory talks to the remote memory service's session directory.
package memory

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
		BaseURL:           serverURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000, // tests should not wait on the limiter
		Burst:             1000,
	})
}

func TestClient_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "user-7" {
			t.Errorf("user_id = %s", got)
		}
		w.Write([]byte(`{"sessions":[{"session_id":"abc","message_count":4},{"session_id":"def"}]}`))
	}))
	defer server.Close()

	summaries, err := testClient(server.URL).List(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].SessionID != "abc" || summaries[0].MessageCount != 4 {
		t.Errorf("first summary = %+v", summaries[0])
	}
}

func TestClient_Update(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/v1/sessions/abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var upd SessionUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if upd.Title == nil || *upd.Title != "renamed" {
			t.Errorf("title = %v", upd.Title)
		}
		if upd.Pinned != nil {
			t.Error("unset fields must be omitted")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	title := "renamed"
	err := testClient(server.URL).Update(context.Background(), "abc", SessionUpdate{Title: &title})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
}

func TestClient_DeleteSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := testClient(server.URL).DeleteSession(context.Background(), "abc"); err != nil {
		t.Fatalf("DeleteSession() error: %v", err)
	}
}

func TestClient_DeleteTolerates404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	// Already gone remotely is success for a best-effort delete.
	if err := testClient(server.URL).DeleteSession(context.Background(), "gone"); err != nil {
		t.Errorf("DeleteSession() on 404 = %v, want nil", err)
	}
}

func TestClient_ListSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).List(context.Background(), "u"); err == nil {
		t.Error("expected an error on 500")
	}
}

func TestClient_RateLimiterHonorsCancellation(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{
		BaseURL:           "http://127.0.0.1:0",
		RequestsPerSecond: 0.001, // effectively never
		Burst:             1,
	})
	// Burn the single burst token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.limiter.Wait(ctx)

	if _, err := c.List(ctx, "u"); err == nil {
		t.Error("expected limiter wait to fail under a cancelled context")
	}
}
