// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine drives streaming answer requests against the session
// store.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/vitakit/vita-chat/internal/ai"
	"github.com/vitakit/vita-chat/internal/logging"
	"github.com/vitakit/vita-chat/internal/model"
	"github.com/vitakit/vita-chat/internal/session"
)

// =============================================================================
// ERRORS AND NOTICES
// =============================================================================

var (
	// ErrRequestPending is returned when a request is already in flight.
	ErrRequestPending = errors.New("a request is already in progress")

	// ErrEmptyMessage is returned for whitespace-only input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoUserMessage is returned by Regenerate when the session has no
	// user message to regenerate from.
	ErrNoUserMessage = errors.New("no user message to regenerate")

	// ErrNotEditable is returned by EditAndResubmit for unknown or
	// non-user messages.
	ErrNotEditable = errors.New("message cannot be edited")
)

const (
	// stoppedNotice fills a stopped response that received no content.
	stoppedNotice = "Generation stopped."

	// errorNotice is shown in place of a failed response; the raw error
	// goes to the engine's error slot.
	errorNotice = "Something went wrong while answering. Please try again."
)

// =============================================================================
// ENGINE
// =============================================================================

// Asker is the answer-service surface the engine needs.
type Asker interface {
	Ask(ctx context.Context, req ai.Request) (*ai.Response, error)
	AskStream(ctx context.Context, req ai.Request, callback ai.StreamCallback) error
}

// Options configures an Engine.
type Options struct {
	Client Asker
	Store  *session.Store
	Log    *logging.Logger

	// Request parameters applied to every query.
	Model        string
	Temperature  float64
	SystemPrompt string
	UserID       string

	// Streaming enables the streaming endpoint for capable models.
	Streaming bool
}

// Engine is the streaming request controller. One request in flight at
// a time; all continuations are generation-checked.
type Engine struct {
	mu         sync.Mutex
	opts       Options
	generation uint64
	pending    bool
	cancelMgr  *cancelManager
	lastErr    error
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = logging.Default()
	}
	return &Engine{
		opts:      opts,
		cancelMgr: newCancelManager(),
	}
}

// Busy reports whether a request is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// SetModel changes the model used for subsequent requests.
func (e *Engine) SetModel(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Model = name
}

// Model returns the model used for requests.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Model
}

// SetRequestParams updates the parameters applied to subsequent
// requests. An in-flight request keeps the values it started with.
func (e *Engine) SetRequestParams(temperature float64, systemPrompt string, streaming bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Temperature = temperature
	e.opts.SystemPrompt = systemPrompt
	e.opts.Streaming = streaming
}

// LastError returns the raw error of the most recent failed request, or
// nil. Cancellation never fills the slot.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// ClearError clears the error slot.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = nil
}

// =============================================================================
// SEND
// =============================================================================

// Send appends the user message and a streaming placeholder, then
// dispatches the request on a fresh goroutine. Returns ErrRequestPending
// while a request is in flight and ErrEmptyMessage for blank input; in
// both cases no state changes.
func (e *Engine) Send(text string, searchMode model.SearchMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending {
		return ErrRequestPending
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	user := model.NewUserMessage(text)
	user.SearchMode = searchMode
	e.opts.Store.AddMessage(user)

	e.dispatchLocked(searchMode)
	return nil
}

// Regenerate removes the assistant reply (or error placeholder) after
// the last user message and re-issues the request with that message's
// content and search mode. The user message itself is never removed or
// duplicated.
func (e *Engine) Regenerate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending {
		return ErrRequestPending
	}

	msgs := e.opts.Store.Messages()
	lastUser := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			lastUser = i
			break
		}
	}
	if lastUser < 0 {
		return ErrNoUserMessage
	}

	for _, msg := range msgs[lastUser+1:] {
		e.opts.Store.RemoveMessage(msg.ID)
	}

	e.dispatchLocked(msgs[lastUser].SearchMode)
	return nil
}

// EditAndResubmit removes the given user message and everything after
// it, returning its content so the caller can place it back in the
// composer. Rejected while a request is pending; the truncation and the
// return are a single atomic step.
func (e *Engine) EditAndResubmit(messageID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending {
		return "", ErrRequestPending
	}

	var content string
	found := false
	for _, msg := range e.opts.Store.Messages() {
		if msg.ID == messageID {
			if msg.Role != model.RoleUser {
				return "", ErrNotEditable
			}
			content = msg.DisplayContent()
			found = true
			break
		}
	}
	if !found {
		return "", ErrNotEditable
	}

	e.opts.Store.TruncateFrom(messageID)
	return content, nil
}

// Stop cancels the in-flight request, force-finalizes the streaming
// placeholder (substituting a stopped notice if no content arrived),
// and clears the pending flag. Idempotent: calling with no active
// request is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	// Invalidate every outstanding continuation before cancelling, so
	// chunks already in flight are dropped on arrival.
	e.generation++
	wasPending := e.pending
	e.pending = false
	e.mu.Unlock()

	e.cancelMgr.cancel()

	if !wasPending {
		return
	}
	if sm := e.opts.Store.StreamingMessage(); sm != nil {
		e.opts.Store.UpdateMessage(sm.ID, func(m *model.Message) {
			if m.IsEmpty() {
				m.AppendToken(stoppedNotice)
			}
			m.FinalizeStream()
		})
	}
	e.opts.Store.Flush()
}

// =============================================================================
// DISPATCH AND CONTINUATIONS
// =============================================================================

// dispatchLocked appends the streaming placeholder and launches the
// request goroutine under a fresh generation. Caller holds e.mu and has
// already placed the user message.
func (e *Engine) dispatchLocked(searchMode model.SearchMode) {
	req := ai.Request{
		Model:        e.opts.Model,
		Messages:     e.historyLocked(),
		Temperature:  e.opts.Temperature,
		SystemPrompt: e.opts.SystemPrompt,
		SearchMode:   string(searchMode),
		UserID:       e.opts.UserID,
	}

	placeholder := model.NewAssistantMessage()
	e.opts.Store.AddMessage(placeholder)

	e.generation++
	gen := e.generation
	e.pending = true
	e.lastErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	e.cancelMgr.set(cancel)

	streaming := e.opts.Streaming && ai.SupportsStreaming(req.Model)
	go e.run(ctx, gen, placeholder.ID, req, streaming)
}

// historyLocked projects the live view into request messages: chat-kind,
// non-error, non-streaming messages only.
func (e *Engine) historyLocked() []ai.Message {
	msgs := e.opts.Store.Messages()
	out := make([]ai.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Kind != model.KindChat || msg.IsError || msg.IsStreaming {
			continue
		}
		if msg.IsEmpty() {
			continue
		}
		out = append(out, ai.Message{Role: msg.Role.String(), Content: msg.DisplayContent()})
	}
	return out
}

// run executes one request off the engine lock. Every write back into
// engine or store state goes through a generation-checked continuation.
func (e *Engine) run(ctx context.Context, gen uint64, placeholderID string, req ai.Request, streaming bool) {
	if streaming {
		err := e.opts.Client.AskStream(ctx, req, func(chunk ai.StreamChunk) {
			e.applyChunk(gen, placeholderID, chunk)
		})
		e.finish(gen, placeholderID, err)
		return
	}

	resp, err := e.opts.Client.Ask(ctx, req)
	if err == nil {
		e.applySingleShot(gen, placeholderID, resp)
	}
	e.finish(gen, placeholderID, err)
}

// applyChunk appends one stream chunk to the placeholder. Stale
// generations no-op without touching the store.
func (e *Engine) applyChunk(gen uint64, placeholderID string, chunk ai.StreamChunk) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}

	e.opts.Store.UpdateMessage(placeholderID, func(m *model.Message) {
		if chunk.Content != "" {
			m.AppendToken(chunk.Content)
		}
		if chunk.Done {
			m.Sources = citations(chunk.Sources)
			m.Metadata = &model.Metadata{
				Model:             chunk.Model,
				ProcessingTime:    chunk.ProcessingTime,
				TokensEstimated:   chunk.CompletionTokens,
				MemoryContextRefs: chunk.MemoryContextRefs,
			}
			m.FinalizeStream()
		}
	})
}

// applySingleShot fills the placeholder from a complete response.
func (e *Engine) applySingleShot(gen uint64, placeholderID string, resp *ai.Response) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}

	e.opts.Store.UpdateMessage(placeholderID, func(m *model.Message) {
		m.AppendToken(resp.Content)
		m.Sources = citations(resp.Sources)
		m.Metadata = &model.Metadata{
			Model:             resp.Meta.Model,
			ProcessingTime:    resp.Meta.ProcessingTime,
			TokensEstimated:   resp.Meta.CompletionTokens,
			MemoryContextRefs: resp.Meta.MemoryContextRefs,
		}
		m.FinalizeStream()
	})
}

// finish completes the request: clears the pending flag, finalizes the
// placeholder if the stream ended without a done chunk, and handles
// failures. Cancellation is not an error; real failures flag the
// message, substitute a generic notice, and fill the error slot.
func (e *Engine) finish(gen uint64, placeholderID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	e.pending = false
	e.cancelMgr.cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		e.lastErr = err
		e.opts.Store.UpdateMessage(placeholderID, func(m *model.Message) {
			m.FinalizeStream()
			m.IsError = true
			m.Content = errorNotice
		})
		e.opts.Log.Warnf("engine: request failed: %v", err)
	} else {
		e.opts.Store.UpdateMessage(placeholderID, func(m *model.Message) {
			m.FinalizeStream()
		})
	}

	e.opts.Store.Flush()
}

// citations converts service sources to message citations.
func citations(sources []ai.Source) []model.Citation {
	if len(sources) == 0 {
		return nil
	}
	out := make([]model.Citation, len(sources))
	for i, s := range sources {
		out[i] = model.Citation{Title: s.Title, URL: s.URL, Snippet: s.Snippet}
	}
	return out
}
