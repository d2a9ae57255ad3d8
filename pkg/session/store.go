package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/rybuilt/humelink/internal/observability"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultIdleTimeout is how long a session may sit untouched before
	// the sweep removes it.
	DefaultIdleTimeout = time.Hour
)

// ErrInvalidInput is returned when a memory merge payload is not a flat
// string-keyed mapping.
var ErrInvalidInput = fmt.Errorf("invalid input: memories must be a flat string map")

// Session is a point-in-time snapshot of one session's state
type Session struct {
	ID           string            `json:"id"`
	Memory       map[string]string `json:"memory"`
	LastAccessed time.Time         `json:"last_accessed"`
}

type record struct {
	memory       map[string]string
	lastAccessed time.Time
}

// Archiver receives the memory of sessions removed by the sweep.
type Archiver interface {
	Archive(sessionID string, memory map[string]string) error
}

// Store holds per-session memory keyed by session ID. All access goes
// through the store; records are created on first reference and removed
// by the idle sweep.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*record
	idleTimeout time.Duration
	now         func() time.Time
	archiver    Archiver
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the store's clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithArchiver sets the archiver that receives swept sessions
func WithArchiver(a Archiver) Option {
	return func(s *Store) {
		s.archiver = a
	}
}

// WithIdleTimeout overrides the idle timeout
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// NewStore creates a new session store
func NewStore(opts ...Option) *Store {
	observability.EnsureRegistered()

	s := &Store{
		sessions:    make(map[string]*record),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GetOrCreate returns a snapshot of the session, allocating an empty one
// if the ID has not been seen. The session's last-access time is always
// refreshed.
func (s *Store) GetOrCreate(sessionID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.touchLocked(sessionID)

	return Session{
		ID:           sessionID,
		Memory:       copyMemory(rec.memory),
		LastAccessed: rec.lastAccessed,
	}
}

// SaveMemory writes one key into session memory
func (s *Store) SaveMemory(sessionID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.touchLocked(sessionID)
	rec.memory[key] = value
}

// GetMemory reads one key from session memory
func (s *Store) GetMemory(sessionID, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.touchLocked(sessionID)
	value, ok := rec.memory[key]
	return value, ok
}

// Memories returns a copy of the session's memory map, creating the
// session if needed
func (s *Store) Memories(sessionID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.touchLocked(sessionID)
	return copyMemory(rec.memory)
}

// Peek returns a copy of the session's memory without creating the
// session or refreshing its last-access time.
func (s *Store) Peek(sessionID string) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.sessions[sessionID]
	if !exists {
		return nil, false
	}
	return copyMemory(rec.memory), true
}

// MergeMemory shallow-merges partial into the session's memory: new keys
// are added, existing keys overwritten. A nil partial is rejected.
func (s *Store) MergeMemory(sessionID string, partial map[string]string) (map[string]string, error) {
	if partial == nil {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.touchLocked(sessionID)
	for k, v := range partial {
		rec.memory[k] = v
	}

	return copyMemory(rec.memory), nil
}

// DeleteMemory removes one key, or all memory when key is empty. Missing
// sessions and missing keys are a no-op, not an error.
func (s *Store) DeleteMemory(sessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[sessionID]
	if !exists {
		return
	}

	rec.lastAccessed = s.now()
	if key == "" {
		rec.memory = make(map[string]string)
		return
	}
	delete(rec.memory, key)
}

// Len returns the number of tracked sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every session idle longer than the timeout and returns
// how many were removed. Swept sessions are handed to the archiver, if
// one is configured, after the lock is released.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	var swept []Session
	for id, rec := range s.sessions {
		if now.Sub(rec.lastAccessed) > s.idleTimeout {
			swept = append(swept, Session{
				ID:           id,
				Memory:       rec.memory,
				LastAccessed: rec.lastAccessed,
			})
			delete(s.sessions, id)
		}
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range swept {
		log.Debug().Str("session_id", sess.ID).Msg("Session evicted")
		if s.archiver != nil {
			if err := s.archiver.Archive(sess.ID, sess.Memory); err != nil {
				log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to archive evicted session")
			}
		}
	}

	if len(swept) > 0 {
		log.Info().Int("evicted", len(swept)).Msg("Swept idle sessions")
		observability.RecordEvictions(len(swept))
	}
	observability.SetActiveSessions(remaining)

	return len(swept)
}

// touchLocked returns the record for sessionID, allocating it if absent,
// and refreshes its last-access time. Caller must hold the write lock.
func (s *Store) touchLocked(sessionID string) *record {
	rec, exists := s.sessions[sessionID]
	if !exists {
		rec = &record{memory: make(map[string]string)}
		s.sessions[sessionID] = rec
		observability.SetActiveSessions(len(s.sessions))
	}
	rec.lastAccessed = s.now()
	return rec
}

func copyMemory(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
