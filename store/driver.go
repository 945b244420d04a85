package store

import (
	"context"
)

// Driver is an interface for the session storage driver.
// Each call reads or writes whole records; a driver never exposes a
// partially written record.
type Driver interface {
	Close() error

	// UpsertSession writes the record, replacing any prior record with the same session id.
	UpsertSession(ctx context.Context, record *SessionRecord) error
	// GetSession returns nil, nil when no readable record exists.
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	// ListSessions returns every readable record; unreadable ones are skipped.
	ListSessions(ctx context.Context) ([]*SessionRecord, error)
	// DeleteSession reports whether a record was removed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}
