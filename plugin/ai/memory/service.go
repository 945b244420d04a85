package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the restoration state of one session's memory.
type State int

const (
	// StateAbsent means the session has never been touched in this process.
	StateAbsent State = iota
	// StateStaged means persisted entries are waiting in the pending stage.
	StateStaged
	// StateMerged means the live sequence is authoritative.
	StateMerged
)

func (s State) String() string {
	switch s {
	case StateStaged:
		return "staged"
	case StateMerged:
		return "merged"
	default:
		return "absent"
	}
}

type sessionMemory struct {
	state   State
	live    []string
	pending []string
}

// Service implements MemoryService with an in-process map guarded by a mutex.
// Persisted snapshots are read through the Loader once per session.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*sessionMemory
	loader   Loader
	now      func() time.Time
}

var _ MemoryService = (*Service)(nil)

// NewService creates a new memory service.
// loader may be nil, in which case every session starts empty.
func NewService(loader Loader) *Service {
	return &Service{
		sessions: make(map[string]*sessionMemory),
		loader:   loader,
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source used by Append.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// GetOrCreate returns the handle for sessionID. The first call for a session
// reads its persisted snapshot; a non-empty snapshot is staged, not merged.
func (s *Service) GetOrCreate(ctx context.Context, sessionID string) *Handle {
	s.mu.RLock()
	_, exists := s.sessions[sessionID]
	s.mu.RUnlock()
	if exists {
		return &Handle{svc: s, sessionID: sessionID}
	}

	var persisted []string
	if s.loader != nil {
		entries, err := s.loader.LoadMemory(ctx, sessionID)
		if err != nil {
			slog.Warn("failed to load persisted memory",
				"session_id", sessionID,
				"error", err)
		} else {
			persisted = entries
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have created it while the snapshot was loading.
	if _, exists := s.sessions[sessionID]; !exists {
		mem := &sessionMemory{state: StateMerged, live: []string{}}
		if len(persisted) > 0 {
			mem.state = StateStaged
			mem.pending = append([]string(nil), persisted...)
		}
		s.sessions[sessionID] = mem
	}
	return &Handle{svc: s, sessionID: sessionID}
}

// RestorePending appends staged entries to the live sequence in their
// original order and clears the stage. Calling it again is a no-op.
func (s *Service) RestorePending(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.sessions[sessionID]
	if !ok || mem.state != StateStaged {
		return 0
	}
	restored := len(mem.pending)
	mem.live = append(mem.live, mem.pending...)
	mem.pending = nil
	mem.state = StateMerged
	slog.Debug("restored session memory", "session_id", sessionID, "entries", restored)
	return restored
}

// Append formats text with the current time and role and appends it.
func (s *Service) Append(sessionID, text, role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.sessions[sessionID]
	if !ok {
		mem = &sessionMemory{state: StateMerged, live: []string{}}
		s.sessions[sessionID] = mem
	}
	entry := FormatEntry(s.now(), role, text)
	mem.live = append(mem.live, entry)
	return entry
}

// Snapshot returns a copy of the live entries; empty for unknown sessions.
func (s *Service) Snapshot(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.sessions[sessionID]
	if !ok {
		return []string{}
	}
	return append([]string{}, mem.live...)
}

// History returns at most limit of the most recent live entries in their
// original order. It never panics; internal failures yield an empty slice.
func (s *Service) History(sessionID string, limit int) (entries []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("failed to read memory history",
				"session_id", sessionID,
				"panic", r)
			entries = []string{}
		}
	}()

	if limit <= 0 {
		return []string{}
	}
	live := s.Snapshot(sessionID)
	if len(live) > limit {
		live = live[len(live)-limit:]
	}
	return live
}

// Delete drops all state for sessionID.
func (s *Service) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// State reports the restoration state of sessionID.
func (s *Service) State(sessionID string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mem, ok := s.sessions[sessionID]
	if !ok {
		return StateAbsent
	}
	return mem.state
}

// Handle is a session-scoped view of the memory service.
type Handle struct {
	svc       *Service
	sessionID string
}

func (h *Handle) SessionID() string {
	return h.sessionID
}

// Append appends an entry to this session.
func (h *Handle) Append(text, role string) string {
	return h.svc.Append(h.sessionID, text, role)
}

// Snapshot returns the live entries of this session.
func (h *Handle) Snapshot() []string {
	return h.svc.Snapshot(h.sessionID)
}

// Recent returns at most limit of the latest entries, for replay to a model.
func (h *Handle) Recent(limit int) []string {
	return h.svc.History(h.sessionID, limit)
}
