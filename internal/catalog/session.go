package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pablo751/dentcb/internal/domain"
)

// Session pins the first snapshot loaded per country, so every question in a
// session sees the same rows even if the file changes underneath.
type Session struct {
	id     string
	loader Loader

	mu        sync.Mutex
	snapshots map[domain.Country]*Snapshot
	lastUsed  time.Time
}

// NewSession creates an empty session over loader.
func NewSession(id string, loader Loader) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:        id,
		loader:    loader,
		snapshots: make(map[domain.Country]*Snapshot),
		lastUsed:  time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Load implements Loader.
func (s *Session) Load(ctx context.Context, loc domain.Locale) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = time.Now()
	if snap, ok := s.snapshots[loc.Country]; ok {
		return snap, nil
	}

	snap, err := s.loader.Load(ctx, loc)
	if err != nil {
		return nil, err
	}
	s.snapshots[loc.Country] = snap
	return snap, nil
}

// Reset forgets pinned snapshots.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[domain.Country]*Snapshot)
}

// LastUsed reports when the session last served a load.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Sessions tracks live sessions by id and expires idle ones.
type Sessions struct {
	loader  Loader
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates a session registry.
func NewSessions(loader Loader, idleTTL time.Duration) *Sessions {
	return &Sessions{
		loader:   loader,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating it if needed. An empty id gets a new uuid.
func (r *Sessions) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && id != "" {
		return s
	}
	s := NewSession(id, r.loader)
	r.sessions[s.ID()] = s
	return s
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle since before now-idleTTL and returns how many went.
func (r *Sessions) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastUsed()) > r.idleTTL {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions until ctx is done.
func (r *Sessions) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
