// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the conversation state.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitakit/vita-chat/internal/logging"
	"github.com/vitakit/vita-chat/internal/model"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Saver persists session snapshots to durable local storage. All calls
// are fire-and-forget from the Store's point of view: failures are
// logged and never block or roll back an in-memory mutation.
type Saver interface {
	SaveSession(s *Session) error
	DeleteSession(id string) error
	SaveActiveID(id string) error
}

// Directory is the remote session-listing collaborator. Best-effort
// only; the Store never waits on it and never fails because of it.
type Directory interface {
	DeleteSession(ctx context.Context, id string) error
}

// RemoteSummary is one entry from the remote session directory.
type RemoteSummary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// =============================================================================
// STORE
// =============================================================================

// remoteOpTimeout bounds best-effort remote directory calls.
const remoteOpTimeout = 10 * time.Second

// Options configures a Store.
type Options struct {
	// Greeting is the assistant message seeded into new sessions.
	Greeting string

	// AutoTitle derives a session title from the first user message.
	AutoTitle bool

	// Saver receives fire-and-forget persistence calls. May be nil.
	Saver Saver

	// Remote receives best-effort directory calls. May be nil.
	Remote Directory

	// Log receives swallowed persistence/remote errors.
	Log *logging.Logger

	// Clock is injectable for tests. Defaults to time.Now.
	Clock func() time.Time
}

// Store holds the session collection, the active pointer, and the live
// message view. All mutations go through its methods; callers must not
// mutate returned sessions or messages directly.
type Store struct {
	mu       sync.Mutex
	sessions []*Session // most-recently-updated first
	activeID string     // empty = no active session
	view     []*model.Message
	opts     Options

	// Single ordered save worker. A newer snapshot must never be
	// overwritten in durable storage by an older clone.
	saves  chan func()
	done   chan struct{}
	closed bool
}

// NewStore creates an empty Store.
func NewStore(opts Options) *Store {
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	if opts.Log == nil {
		opts.Log = logging.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Store{
		opts:  opts,
		saves: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go s.saveLoop()
	return s
}

// =============================================================================
// SELECTORS
// =============================================================================

// ActiveID returns the active session id, or "" if none.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a deep copy of the active session's current state, or
// nil if no session is active.
func (s *Store) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(s.activeID)
	if sess == nil {
		return nil
	}
	return sess.Clone()
}

// Sessions returns all session records, most recently updated first.
// The returned sessions are owned by the Store; treat them as read-only.
func (s *Store) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Session(nil), s.sessions...)
}

// Listed returns the default listing: non-archived sessions, most
// recently updated first.
func (s *Store) Listed() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !sess.IsArchived {
			out = append(out, sess)
		}
	}
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// NewSession flushes the current active session, creates a fresh session
// seeded with the greeting message, inserts it at the front of the
// collection, and makes it active. Returns the new session id.
func (s *Store) NewSession(title string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushActiveLocked()
	return s.createLocked(title)
}

// createLocked builds and activates a new session. Caller holds the lock
// and has already flushed any previous active session.
func (s *Store) createLocked(title string) string {
	if title == "" {
		title = PlaceholderTitle
	}
	now := s.opts.Clock()
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  seedMessages(s.opts.Greeting, now),
	}
	sess.refreshDerived()

	s.sessions = append([]*Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.view = cloneMessages(sess.Messages)

	s.persistLocked(sess)
	s.persistActiveLocked()
	return sess.ID
}

// Load switches the active session: flush the outgoing live view into
// its record, then load the incoming snapshot (seeding the greeting if
// the snapshot is empty). An unknown id is a silent no-op, logged at
// debug so masked caller errors stay diagnosable.
func (s *Store) Load(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.activeID {
		return
	}
	target := s.findLocked(id)
	if target == nil {
		s.opts.Log.Debugf("session: load ignored, unknown id %s", id)
		return
	}

	s.flushActiveLocked()

	if len(target.Messages) == 0 {
		target.Messages = seedMessages(s.opts.Greeting, s.opts.Clock())
		target.refreshDerived()
	}
	s.activeID = target.ID
	s.view = cloneMessages(target.Messages)
	s.persistActiveLocked()
}

// Delete removes a session. If it was active, the active pointer moves
// to the most recently updated remaining non-archived session, or a
// fresh session is created when none remain. The remote directory delete
// is best-effort and never blocks or rolls back the local removal.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)

	if s.activeID == id {
		s.activeID = ""
		s.view = nil
		if next := s.newestUnarchivedLocked(); next != nil {
			if len(next.Messages) == 0 {
				next.Messages = seedMessages(s.opts.Greeting, s.opts.Clock())
				next.refreshDerived()
			}
			s.activeID = next.ID
			s.view = cloneMessages(next.Messages)
			s.persistActiveLocked()
		} else {
			s.createLocked(PlaceholderTitle)
		}
	}

	if saver := s.opts.Saver; saver != nil {
		s.enqueueSaveLocked(func() {
			if err := saver.DeleteSession(id); err != nil {
				s.opts.Log.Warnf("session: local delete of %s failed: %v", id, err)
			}
		})
	}
	if remote := s.opts.Remote; remote != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), remoteOpTimeout)
			defer cancel()
			if err := remote.DeleteSession(ctx, id); err != nil {
				s.opts.Log.Warnf("session: remote delete of %s failed: %v", id, err)
			}
		}()
	}
}

// Duplicate deep-copies a session's history into a new unpinned session
// with a derived title, inserted at the front. The active pointer does
// not move. Returns the new id, or "" if the source does not exist.
func (s *Store) Duplicate(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.findLocked(id)
	if src == nil {
		return ""
	}
	now := s.opts.Clock()
	dup := &Session{
		ID:        uuid.NewString(),
		Title:     src.Title + " (copy)",
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  cloneMessages(src.Messages),
	}
	dup.refreshDerived()
	s.sessions = append([]*Session{dup}, s.sessions...)
	s.persistLocked(dup)
	return dup.ID
}

// =============================================================================
// FLAGS AND METADATA
// =============================================================================

// SetTitle updates a session's title. Idempotent.
func (s *Store) SetTitle(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil || sess.Title == title {
		return
	}
	sess.Title = title
	sess.UpdatedAt = s.opts.Clock()
	s.persistLocked(sess)
}

// SetPinned sets the pinned flag. Idempotent and reversible.
func (s *Store) SetPinned(id string, pinned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil || sess.IsPinned == pinned {
		return
	}
	sess.IsPinned = pinned
	s.persistLocked(sess)
}

// SetArchived sets the archived flag. Archived sessions stay loadable
// but drop out of the default listing. Idempotent and reversible.
func (s *Store) SetArchived(id string, archived bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(id)
	if sess == nil || sess.IsArchived == archived {
		return
	}
	sess.IsArchived = archived
	s.persistLocked(sess)
}

// =============================================================================
// REMOTE RECONCILIATION
// =============================================================================

// Reconcile merges a remote directory listing into the local collection.
// Deduplication is by id and the local record always wins; remote-only
// entries become empty local records that seed a greeting on first load.
func (s *Store) Reconcile(remote []RemoteSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adopted := false
	for _, r := range remote {
		if r.SessionID == "" || s.findLocked(r.SessionID) != nil {
			continue
		}
		sess := &Session{
			ID:           r.SessionID,
			Title:        "Synced conversation",
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.LastActivity,
			MessageCount: r.MessageCount,
		}
		s.sessions = append(s.sessions, sess)
		s.persistLocked(sess)
		adopted = true
	}
	if adopted {
		sort.SliceStable(s.sessions, func(i, j int) bool {
			return s.sessions[i].UpdatedAt.After(s.sessions[j].UpdatedAt)
		})
	}
}

// Restore replaces the collection with sessions loaded from durable
// storage and points the view at activeID (falling back to the newest
// session when the stored pointer is stale).
func (s *Store) Restore(sessions []*Session, activeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = sessions
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].UpdatedAt.After(s.sessions[j].UpdatedAt)
	})
	for _, sess := range s.sessions {
		sess.refreshDerived()
	}

	s.activeID = ""
	s.view = nil
	target := s.findLocked(activeID)
	if target == nil {
		target = s.newestUnarchivedLocked()
	}
	if target != nil {
		if len(target.Messages) == 0 {
			target.Messages = seedMessages(s.opts.Greeting, s.opts.Clock())
			target.refreshDerived()
		}
		s.activeID = target.ID
		s.view = cloneMessages(target.Messages)
	}
}

// =============================================================================
// FLUSH AND PERSISTENCE
// =============================================================================

// Flush writes the live view back into the active session's record and
// queues it for persistence. Called before every session switch and at
// the end of each request; shutdown goes through Close, which also
// drains the queue.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushActiveLocked()
}

func (s *Store) flushActiveLocked() {
	if s.activeID == "" {
		return
	}
	sess := s.findLocked(s.activeID)
	if sess == nil {
		s.activeID = ""
		s.view = nil
		return
	}
	s.syncActiveLocked()
	s.persistLocked(sess)
}

// persistLocked hands a snapshot clone to the save worker. Persistence
// never blocks or fails a local mutation; the worker applies clones in
// mutation order.
func (s *Store) persistLocked(sess *Session) {
	saver := s.opts.Saver
	if saver == nil {
		return
	}
	clone := sess.Clone()
	s.enqueueSaveLocked(func() {
		if err := saver.SaveSession(clone); err != nil {
			s.opts.Log.Warnf("session: persist of %s failed: %v", clone.ID, err)
		}
	})
}

func (s *Store) persistActiveLocked() {
	saver := s.opts.Saver
	if saver == nil {
		return
	}
	id := s.activeID
	s.enqueueSaveLocked(func() {
		if err := saver.SaveActiveID(id); err != nil {
			s.opts.Log.Warnf("session: persist of active pointer failed: %v", err)
		}
	})
}

// enqueueSaveLocked queues one persistence call for the save worker.
// Caller holds the lock. Calls after Close are dropped; shutdown has
// already drained the queue by then.
func (s *Store) enqueueSaveLocked(job func()) {
	if s.closed {
		return
	}
	s.saves <- job
}

// saveLoop applies queued persistence work in submission order.
func (s *Store) saveLoop() {
	defer close(s.done)
	for job := range s.saves {
		job()
	}
}

// Close flushes the live view, then synchronously drains the save queue
// so the final snapshot reaches durable storage before the caller closes
// it. The Store accepts no further persistence after Close.
func (s *Store) Close() {
	s.mu.Lock()
	s.flushActiveLocked()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.saves)
	<-s.done
}

// =============================================================================
// INTERNAL LOOKUPS
// =============================================================================

func (s *Store) findLocked(id string) *Session {
	if id == "" {
		return nil
	}
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// newestUnarchivedLocked returns the most recently updated non-archived
// session, or nil.
func (s *Store) newestUnarchivedLocked() *Session {
	var best *Session
	for _, sess := range s.sessions {
		if sess.IsArchived {
			continue
		}
		if best == nil || sess.UpdatedAt.After(best.UpdatedAt) {
			best = sess
		}
	}
	return best
}
