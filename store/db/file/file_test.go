package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/macagent/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	return d
}

func TestDocumentLayout(t *testing.T) {
	d := newTestDB(t)
	created := time.Date(2025, 5, 17, 9, 0, 0, 0, time.Local)
	record := &store.SessionRecord{
		Session: &store.Session{ID: "abc", CreatedAt: created, LastActive: created, MessageCount: 1},
		Memory:  []string{"[2025-05-17 09:00:00] user: hi"},
	}
	require.NoError(t, d.UpsertSession(context.Background(), record))

	data, err := os.ReadFile(filepath.Join(d.dir, "abc.json"))
	require.NoError(t, err)

	var doc struct {
		SessionInfo    map[string]any `json:"session_info"`
		MemoryContents []string       `json:"memory_contents"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "abc", doc.SessionInfo["session_id"])
	assert.Nil(t, doc.SessionInfo["user_id"])
	assert.Equal(t, "2025-05-17T09:00:00.000000", doc.SessionInfo["created_at"])
	assert.EqualValues(t, 1, doc.SessionInfo["message_count"])
	assert.Equal(t, []string{"[2025-05-17 09:00:00] user: hi"}, doc.MemoryContents)
	assert.Contains(t, string(data), "\n  \"session_info\"")

	entries, err := os.ReadDir(d.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadsRecordWithoutFraction(t *testing.T) {
	d := newTestDB(t)
	doc := `{
  "session_info": {
    "session_id": "legacy",
    "user_id": "system_alice",
    "created_at": "2025-05-17T09:00:00",
    "last_active": "2025-05-17T10:15:30.250000",
    "message_count": 4
  },
  "memory_contents": []
}`
	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "legacy.json"), []byte(doc), 0o644))

	record, err := d.GetSession(context.Background(), "legacy")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "system_alice", record.Session.UserID)
	assert.Equal(t, 4, record.Session.MessageCount)
	assert.Equal(t, 10, record.Session.LastActive.Hour())
	assert.Equal(t, 250*time.Millisecond, time.Duration(record.Session.LastActive.Nanosecond()))
	assert.NotNil(t, record.Memory)
}

func TestMalformedFiles(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.dir, "empty.json"), []byte(`{"memory_contents":[]}`), 0o644))

	good := &store.SessionRecord{
		Session: &store.Session{ID: "good", CreatedAt: time.Now(), LastActive: time.Now()},
	}
	require.NoError(t, d.UpsertSession(ctx, good))

	record, err := d.GetSession(ctx, "broken")
	assert.Error(t, err)
	assert.Nil(t, record)

	records, err := d.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Session.ID)
}

func TestRejectsPathLikeIDs(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"", "..", "../escape", `a\b`} {
		_, err := d.GetSession(ctx, id)
		assert.ErrorIs(t, err, store.ErrInvalidSessionID, id)

		err = d.UpsertSession(ctx, &store.SessionRecord{Session: &store.Session{ID: id}})
		assert.ErrorIs(t, err, store.ErrInvalidSessionID, id)
	}
}

func TestDeleteSession(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	record := &store.SessionRecord{Session: &store.Session{ID: "gone", CreatedAt: time.Now(), LastActive: time.Now()}}
	require.NoError(t, d.UpsertSession(ctx, record))

	deleted, err := d.DeleteSession(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = d.DeleteSession(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, deleted)
}
