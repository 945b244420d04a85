package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/store"
)

const schema = `
PRAGMA busy_timeout = 5000;
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT,
	created_at TEXT NOT NULL,
	last_active TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	memory_contents TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active);
`

type DB struct {
	db *sql.DB
}

// NewDB opens db by DSN and initializes the session schema.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}
	return Open(profile.DSN)
}

// Open opens the database file at path in WAL mode.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	sqliteDB, err := sql.Open("sqlite", path+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", path)
	}
	// A single writer avoids SQLITE_BUSY between concurrent upserts.
	sqliteDB.SetMaxOpenConns(1)

	if err := sqliteDB.Ping(); err != nil {
		sqliteDB.Close()
		return nil, errors.Wrap(err, "failed to ping db")
	}
	if _, err := sqliteDB.Exec(schema); err != nil {
		sqliteDB.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return &DB{db: sqliteDB}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) UpsertSession(ctx context.Context, record *store.SessionRecord) error {
	if record == nil || record.Session == nil {
		return store.ErrInvalidRecord
	}
	s := record.Session
	if s.ID == "" {
		return store.ErrInvalidSessionID
	}
	memory := record.Memory
	if memory == nil {
		memory = []string{}
	}
	memoryJSON, err := json.Marshal(memory)
	if err != nil {
		return errors.Wrap(err, "failed to encode memory")
	}

	var userID any
	if s.UserID != "" {
		userID = s.UserID
	}

	stmt := `
	INSERT INTO sessions (session_id, user_id, created_at, last_active, message_count, memory_contents)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		user_id = excluded.user_id,
		created_at = excluded.created_at,
		last_active = excluded.last_active,
		message_count = excluded.message_count,
		memory_contents = excluded.memory_contents`
	if _, err := d.db.ExecContext(ctx, stmt,
		s.ID, userID,
		store.FormatTime(s.CreatedAt), store.FormatTime(s.LastActive),
		s.MessageCount, string(memoryJSON),
	); err != nil {
		return errors.Wrap(err, "failed to upsert session")
	}
	return nil
}

func (d *DB) GetSession(ctx context.Context, sessionID string) (*store.SessionRecord, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, created_at, last_active, message_count, memory_contents
		FROM sessions WHERE session_id = ?`, sessionID)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListSessions returns records ordered by creation time. Rows that fail to
// decode are skipped.
func (d *DB) ListSessions(ctx context.Context) ([]*store.SessionRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT session_id, user_id, created_at, last_active, message_count, memory_contents
		FROM sessions ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sessions")
	}
	defer rows.Close()

	list := []*store.SessionRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			continue
		}
		list = append(list, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate sessions")
	}
	return list, nil
}

func (d *DB) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete session")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*store.SessionRecord, error) {
	var session store.Session
	var userID sql.NullString
	var createdAt, lastActive, memoryJSON string
	if err := row.Scan(&session.ID, &userID, &createdAt, &lastActive, &session.MessageCount, &memoryJSON); err != nil {
		return nil, err
	}
	session.UserID = userID.String

	var err error
	if session.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return nil, errors.Wrap(err, "invalid created_at")
	}
	if session.LastActive, err = store.ParseTime(lastActive); err != nil {
		return nil, errors.Wrap(err, "invalid last_active")
	}

	memory := []string{}
	if err := json.Unmarshal([]byte(memoryJSON), &memory); err != nil {
		return nil, errors.Wrap(err, "invalid memory_contents")
	}
	if memory == nil {
		memory = []string{}
	}
	return &store.SessionRecord{Session: &session, Memory: memory}, nil
}
