// internal/store/memory.go
//
// In-memory implementation of the session Store.
// Sessions wrap a live *game.Engine, so they cannot be serialized; durable
// outcomes are written by the history package instead.
//
// Characteristics:
//   - Sessions keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Delete and Sweep close the engine, flushing any pending commit.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/clusters/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Session is one player's run through one puzzle.
type Session struct {
	ID        string
	PuzzleID  string
	UserID    string // empty for guests
	AnonID    string // guest cookie, empty for signed-in players
	DailyDate string // "YYYY-MM-DD" when this is the daily puzzle
	Engine    *game.Engine
	StartedAt time.Time
	LastSeen  time.Time
}

// Store defines the persistence interface for play sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID and marks it as seen.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete closes and removes a session.
	Delete(ctx context.Context, id string) error

	// Sweep closes and removes sessions idle for ttl or longer. A ttl of 0
	// closes every session.
	Sweep(ctx context.Context, ttl time.Duration) int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex        // guards sessions
	sessions map[string]*Session // keyed by Session.ID
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session), now: time.Now}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" || s.Engine == nil {
		return errors.New("invalid session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastSeen = m.now()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.LastSeen = m.now()
	return s, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Engine.Close()
	return nil
}

func (m *memory) Sweep(ctx context.Context, ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if !s.LastSeen.After(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.Engine.Close()
	}
	return len(stale)
}
