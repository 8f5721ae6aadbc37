// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory talks to the remote memory service's session directory.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/vitakit/vita-chat/internal/session"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration for the memory-service client.
type ClientConfig struct {
	// BaseURL is the memory service base URL (default: http://127.0.0.1:8766).
	BaseURL string

	// Timeout per request (default: 10s).
	Timeout time.Duration

	// RequestsPerSecond caps the client's call rate (default: 5).
	RequestsPerSecond float64

	// Burst allows short bursts above the sustained rate (default: 10).
	Burst int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8766",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the session-directory client. Thread-safe; every call waits
// on the rate limiter before touching the network.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
// Zero-valued fields fall back to defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8766"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 5
	}
	if config.Burst == 0 {
		config.Burst = 10
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}
}

// =============================================================================
// DIRECTORY OPERATIONS
// =============================================================================

// List fetches the session summaries known to the memory service for a
// user.
func (c *Client) List(ctx context.Context, userID string) ([]session.RemoteSummary, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.config.BaseURL + "/v1/sessions?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("session listing failed: " + resp.Status)
	}

	var result struct {
		Sessions []session.RemoteSummary `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

// SessionUpdate is a partial update to a directory entry. Nil fields are
// left unchanged.
type SessionUpdate struct {
	Title    *string `json:"title,omitempty"`
	Pinned   *bool   `json:"pinned,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// Update pushes metadata changes for one session.
func (c *Client) Update(ctx context.Context, sessionID string, upd SessionUpdate) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	endpoint := c.config.BaseURL + "/v1/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.New("session update failed: " + resp.Status)
	}
	return nil
}

// DeleteSession removes a session from the directory. Satisfies
// session.Directory, so the store can issue its best-effort remote
// deletes through this client.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.config.BaseURL + "/v1/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return errors.New("session delete failed: " + resp.Status)
	}
	return nil
}

var _ session.Directory = (*Client)(nil)
