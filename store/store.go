package store

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/macagent/internal/profile"
)

var (
	// ErrInvalidSessionID is returned for ids that cannot address a record.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrInvalidRecord is returned when a record has no session metadata.
	ErrInvalidRecord = errors.New("session record has no session metadata")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
)

// Store provides session persistence on top of a Driver.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// SaveSession writes the session together with the full memory snapshot.
func (s *Store) SaveSession(ctx context.Context, session *Session, memory []string) error {
	if session == nil {
		return ErrInvalidRecord
	}
	if memory == nil {
		memory = []string{}
	}
	record := &SessionRecord{
		Session: session.Clone(),
		Memory:  append([]string(nil), memory...),
	}
	if err := s.driver.UpsertSession(ctx, record); err != nil {
		return errors.Wrapf(err, "failed to save session %s", session.ID)
	}
	return nil
}

// LoadSession returns nil when the session was never saved or its record
// cannot be read.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	record, err := s.driver.GetSession(ctx, sessionID)
	if err != nil {
		slog.Warn("failed to load session, treating as absent",
			"session_id", sessionID,
			"error", err)
		return nil, nil
	}
	return record, nil
}

// LoadAllSessions returns every readable record keyed by session id.
func (s *Store) LoadAllSessions(ctx context.Context) (map[string]*SessionRecord, error) {
	records, err := s.driver.ListSessions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	result := make(map[string]*SessionRecord, len(records))
	for _, record := range records {
		if record == nil || record.Session == nil {
			continue
		}
		result[record.Session.ID] = record
	}
	return result, nil
}

// LoadMemory returns the persisted memory snapshot of a session, or nil.
func (s *Store) LoadMemory(ctx context.Context, sessionID string) ([]string, error) {
	record, err := s.LoadSession(ctx, sessionID)
	if err != nil || record == nil {
		return nil, err
	}
	return record.Memory, nil
}

// DeleteSession removes the persisted record and reports whether one existed.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := s.driver.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete session %s", sessionID)
	}
	return deleted, nil
}
