// Package file stores each session as a JSON document in a directory.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/store"
)

const (
	recordExt = ".json"

	// loadConcurrency bounds parallel file reads in ListSessions.
	loadConcurrency = 8
)

// sessionInfo is the persisted form of store.Session.
type sessionInfo struct {
	SessionID    string  `json:"session_id"`
	UserID       *string `json:"user_id"`
	CreatedAt    string  `json:"created_at"`
	LastActive   string  `json:"last_active"`
	MessageCount int     `json:"message_count"`
}

// sessionDocument is the on-disk layout of one session file.
type sessionDocument struct {
	SessionInfo    *sessionInfo `json:"session_info"`
	MemoryContents []string     `json:"memory_contents"`
}

// DB is a directory of session documents, one file per session id.
type DB struct {
	dir string
}

// NewDB creates the driver, creating the session directory if needed.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	return Open(profile.SessionDir)
}

// Open creates a driver rooted at dir.
func Open(dir string) (*DB, error) {
	if dir == "" {
		return nil, errors.New("session directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create session directory %s", dir)
	}
	return &DB{dir: dir}, nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) recordPath(sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." ||
		strings.ContainsAny(sessionID, `/\`) || strings.ContainsRune(sessionID, 0) {
		return "", errors.Wrapf(store.ErrInvalidSessionID, "%q", sessionID)
	}
	return filepath.Join(d.dir, sessionID+recordExt), nil
}

// UpsertSession writes the record to a temp file and renames it into place,
// so readers see either the previous document or the new one.
func (d *DB) UpsertSession(_ context.Context, record *store.SessionRecord) error {
	if record == nil || record.Session == nil {
		return store.ErrInvalidRecord
	}
	finalPath, err := d.recordPath(record.Session.ID)
	if err != nil {
		return err
	}

	data, err := encodeRecord(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	tmpFile, err := os.CreateTemp(d.dir, "session-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp session file")
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "failed to write session data")
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, "failed to sync session data")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp session file")
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return errors.Wrapf(err, "failed to rename session file to %s", finalPath)
	}

	success = true
	return nil
}

// GetSession returns nil, nil for a missing file. A malformed file is
// reported as an error so the caller can log it.
func (d *DB) GetSession(_ context.Context, sessionID string) (*store.SessionRecord, error) {
	path, err := d.recordPath(sessionID)
	if err != nil {
		return nil, err
	}
	return readRecord(path)
}

// ListSessions reads every *.json document in the directory. Files that fail
// to decode are logged and skipped.
func (d *DB) ListSessions(ctx context.Context) ([]*store.SessionRecord, error) {
	paths, err := filepath.Glob(filepath.Join(d.dir, "*"+recordExt))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list session files")
	}

	var (
		mu      sync.Mutex
		records = make([]*store.SessionRecord, 0, len(paths))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := readRecord(path)
			if err != nil {
				slog.Warn("skipping unreadable session file", "path", path, "error", err)
				return nil
			}
			if record == nil {
				return nil
			}
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (d *DB) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	path, err := d.recordPath(sessionID)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to remove %s", path)
	}
	return true, nil
}

func readRecord(path string) (*store.SessionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	record, err := decodeRecord(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return record, nil
}

func encodeRecord(record *store.SessionRecord) ([]byte, error) {
	s := record.Session
	info := &sessionInfo{
		SessionID:    s.ID,
		CreatedAt:    store.FormatTime(s.CreatedAt),
		LastActive:   store.FormatTime(s.LastActive),
		MessageCount: s.MessageCount,
	}
	if s.UserID != "" {
		userID := s.UserID
		info.UserID = &userID
	}
	memory := record.Memory
	if memory == nil {
		memory = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&sessionDocument{SessionInfo: info, MemoryContents: memory}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*store.SessionRecord, error) {
	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.SessionInfo == nil {
		return nil, store.ErrInvalidRecord
	}
	info := doc.SessionInfo
	if info.SessionID == "" {
		return nil, store.ErrInvalidSessionID
	}
	createdAt, err := store.ParseTime(info.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "invalid created_at")
	}
	lastActive, err := store.ParseTime(info.LastActive)
	if err != nil {
		return nil, errors.Wrap(err, "invalid last_active")
	}

	session := &store.Session{
		ID:           info.SessionID,
		CreatedAt:    createdAt,
		LastActive:   lastActive,
		MessageCount: info.MessageCount,
	}
	if info.UserID != nil {
		session.UserID = *info.UserID
	}
	memory := doc.MemoryContents
	if memory == nil {
		memory = []string{}
	}
	return &store.SessionRecord{Session: session, Memory: memory}, nil
}
