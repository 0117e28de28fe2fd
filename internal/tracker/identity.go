// Package tracker is the Go client of the collection endpoint. It mirrors the
// browser SDK: a persisted visitor identity with idle-based session rotation,
// a fire-and-forget emitter and a page lifecycle coordinator.
package tracker

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

const (
	KeyVisitorID = "sk_visitor_id"
	KeySessionID = "sk_session_id"
	KeySessionTS = "sk_session_ts"

	// SessionIdle is the inactivity after which a new session id is minted.
	SessionIdle = 30 * time.Minute
)

// IdentityStore hands out visitor and session ids backed by a Store.
// Storage errors are ignored: ids are still returned, just not persisted.
type IdentityStore struct {
	store Store
	now   func() time.Time

	mu         sync.Mutex
	newSession bool
}

// IdentityOption configures an IdentityStore.
type IdentityOption func(*IdentityStore)

// WithClock replaces time.Now, for tests and simulations.
func WithClock(now func() time.Time) IdentityOption {
	return func(s *IdentityStore) { s.now = now }
}

func NewIdentityStore(store Store, opts ...IdentityOption) *IdentityStore {
	s := &IdentityStore{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetVisitorID returns the persisted visitor id, creating it on first use.
func (s *IdentityStore) GetVisitorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.store.Get(KeyVisitorID); ok && id != "" {
		return id
	}
	id := newID("v", s.now())
	_ = s.store.Set(KeyVisitorID, id)
	return id
}

// GetSessionID returns the current session id, minting a new one when the
// last activity is SessionIdle or more in the past. Every call counts as
// activity.
func (s *IdentityStore) GetSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id, _ := s.store.Get(KeySessionID)
	last, hasLast := s.lastActivity()

	s.newSession = id == "" || !hasLast || now.Sub(last) >= SessionIdle
	if s.newSession {
		id = newID("s", now)
		_ = s.store.Set(KeySessionID, id)
	}
	_ = s.store.Set(KeySessionTS, strconv.FormatInt(now.UnixMilli(), 10))
	return id
}

// IsNewSession reports whether the last GetSessionID call minted the id.
func (s *IdentityStore) IsNewSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newSession
}

func (s *IdentityStore) lastActivity() (time.Time, bool) {
	raw, ok := s.store.Get(KeySessionTS)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// newID returns prefix_<random base36><unix millis base36>. Not cryptographically secure.
func newID(prefix string, now time.Time) string {
	return prefix + "_" + strconv.FormatUint(rand.Uint64(), 36) + strconv.FormatInt(now.UnixMilli(), 36)
}
