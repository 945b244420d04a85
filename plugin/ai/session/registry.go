// Package session resolves CLI invocations to durable conversation sessions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/macagent/store"
)

// SessionStore is the persistence the registry needs. *store.Store satisfies it.
type SessionStore interface {
	SaveSession(ctx context.Context, session *store.Session, memory []string) error
	LoadAllSessions(ctx context.Context) (map[string]*store.SessionRecord, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// Registry is the in-memory index of known sessions.
// Sessions are kept in insertion order so scans are deterministic.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*store.Session
	order    []string

	store SessionStore
	env   Environment
	now   func() time.Time
	newID func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnvironment replaces the process context read by the strategies.
func WithEnvironment(env Environment) Option {
	return func(r *Registry) { r.env = env }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// NewRegistry creates a registry and loads the metadata of every persisted
// session. Memory contents are left to the memory service.
func NewRegistry(ctx context.Context, st SessionStore, opts ...Option) (*Registry, error) {
	r := &Registry{
		sessions: make(map[string]*store.Session),
		store:    st,
		env:      OSEnvironment(),
		now:      func() time.Time { return time.Now().Truncate(time.Microsecond) },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	records, err := st.LoadAllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	loaded := make([]*store.Session, 0, len(records))
	for _, record := range records {
		loaded = append(loaded, record.Session.Clone())
	}
	sort.SliceStable(loaded, func(i, j int) bool {
		if loaded[i].CreatedAt.Equal(loaded[j].CreatedAt) {
			return loaded[i].ID < loaded[j].ID
		}
		return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
	})
	for _, s := range loaded {
		r.sessions[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	slog.Debug("session registry loaded", "sessions", len(loaded))
	return r, nil
}

// CreateSession registers a fresh session and persists it with empty memory.
// A persistence failure is logged; the session stays usable in memory.
func (r *Registry) CreateSession(ctx context.Context, userID string) string {
	now := r.now()
	s := &store.Session{
		ID:         r.newID(),
		UserID:     userID,
		CreatedAt:  now,
		LastActive: now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	snapshot := s.Clone()
	r.mu.Unlock()

	if err := r.store.SaveSession(ctx, snapshot, nil); err != nil {
		slog.Warn("failed to persist new session",
			"session_id", s.ID,
			"error", err)
	}
	slog.Debug("session created", "session_id", s.ID, "user_id", userID)
	return s.ID
}

// GetSession returns a copy of the session, or nil when unknown.
func (r *Registry) GetSession(sessionID string) *store.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID].Clone()
}

// ResolveByStrategy returns the session for the strategy-derived user id:
// the first session carrying that id, else for the recent strategy the most
// recently active session, else a new session tagged with the id.
func (r *Registry) ResolveByStrategy(ctx context.Context, strategy Strategy, customUserID string) string {
	userID := DeriveUserID(strategy, customUserID, r.env)

	r.mu.Lock()
	for _, id := range r.order {
		if s := r.sessions[id]; s.UserID == userID {
			s.Touch(r.now())
			r.mu.Unlock()
			return id
		}
	}

	if strategy == StrategyRecent && len(r.order) > 0 {
		var recent *store.Session
		for _, id := range r.order {
			s := r.sessions[id]
			if recent == nil || s.LastActive.After(recent.LastActive) {
				recent = s
			}
		}
		recent.Touch(r.now())
		r.mu.Unlock()
		return recent.ID
	}
	r.mu.Unlock()

	return r.CreateSession(ctx, userID)
}

// UpdateActivity bumps last-active and the message counter. It does not
// persist; the caller saves metadata together with the memory snapshot.
// Returns a copy of the updated session, or nil when unknown.
func (r *Registry) UpdateActivity(sessionID string) *store.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	s.Touch(r.now())
	return s.Clone()
}

// DeleteSession removes the session from the index and from storage.
// Returns false when the id was unknown to the registry.
func (r *Registry) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	if _, ok := r.sessions[sessionID]; !ok {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	deleted, err := r.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return deleted, nil
}

// ListSessions returns summaries in registration order.
func (r *Registry) ListSessions() []*store.SessionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*store.SessionSummary, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.sessions[id].Summary())
	}
	return list
}

// Info returns the summary of one session.
func (r *Registry) Info(sessionID string) (*store.SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrSessionNotFound, sessionID)
	}
	return s.Summary(), nil
}
