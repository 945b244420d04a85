package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	entries map[string][]string
	err     error
	calls   int
}

func (f *fakeLoader) LoadMemory(_ context.Context, sessionID string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[sessionID], nil
}

func fixedClock() func() time.Time {
	ts := time.Date(2025, 5, 17, 18, 30, 0, 0, time.Local)
	return func() time.Time { return ts }
}

func TestGetOrCreateStagesPersistedEntries(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{entries: map[string][]string{
		"s1": {"[2025-05-16 10:00:00] user: a", "[2025-05-16 10:00:01] assistant: b"},
	}}
	svc := NewService(loader)

	h := svc.GetOrCreate(ctx, "s1")
	assert.Equal(t, "s1", h.SessionID())
	assert.Equal(t, StateStaged, svc.State("s1"))
	assert.Empty(t, svc.Snapshot("s1"), "pending entries are not visible before restore")

	assert.Equal(t, 2, svc.RestorePending("s1"))
	assert.Equal(t, StateMerged, svc.State("s1"))
	assert.Equal(t, loader.entries["s1"], svc.Snapshot("s1"))

	// A second lookup does not read storage again.
	svc.GetOrCreate(ctx, "s1")
	assert.Equal(t, 1, loader.calls)
}

func TestRestorePendingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{entries: map[string][]string{"s1": {"[2025-05-16 10:00:00] user: a"}}}
	svc := NewService(loader)

	svc.GetOrCreate(ctx, "s1")
	svc.RestorePending("s1")
	once := svc.Snapshot("s1")

	assert.Equal(t, 0, svc.RestorePending("s1"))
	assert.Equal(t, once, svc.Snapshot("s1"))

	svc.GetOrCreate(ctx, "s1")
	assert.Equal(t, 0, svc.RestorePending("s1"))
	assert.Equal(t, once, svc.Snapshot("s1"))
}

func TestRestoreAppendsAfterLiveEntries(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{entries: map[string][]string{"s1": {"old-1", "old-2"}}}
	svc := NewService(loader)
	svc.SetClock(fixedClock())

	svc.GetOrCreate(ctx, "s1")
	live := svc.Append("s1", "new", RoleUser)
	svc.RestorePending("s1")

	assert.Equal(t, []string{live, "old-1", "old-2"}, svc.Snapshot("s1"))
}

func TestNothingPersistedGoesStraightToMerged(t *testing.T) {
	svc := NewService(&fakeLoader{})
	svc.GetOrCreate(context.Background(), "fresh")
	assert.Equal(t, StateMerged, svc.State("fresh"))
	assert.Equal(t, 0, svc.RestorePending("fresh"))
}

func TestLoaderErrorStartsEmpty(t *testing.T) {
	svc := NewService(&fakeLoader{err: errors.New("disk on fire")})
	h := svc.GetOrCreate(context.Background(), "s1")
	assert.Equal(t, StateMerged, svc.State("s1"))
	assert.Empty(t, h.Snapshot())
}

func TestAppendPreservesInsertionOrder(t *testing.T) {
	svc := NewService(nil)
	svc.SetClock(fixedClock())

	var want []string
	for i := 0; i < 25; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		want = append(want, svc.Append("s1", fmt.Sprintf("msg %d", i), role))
	}
	assert.Equal(t, want, svc.Snapshot("s1"))
	assert.Equal(t, "[2025-05-17 18:30:00] user: msg 0", want[0])
}

func TestHistory(t *testing.T) {
	svc := NewService(nil)
	for i := 0; i < 5; i++ {
		svc.Append("s1", fmt.Sprintf("m%d", i), RoleUser)
	}
	all := svc.Snapshot("s1")

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"limit below size", 2, all[3:]},
		{"limit equals size", 5, all},
		{"limit above size", 50, all},
		{"zero limit", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.History("s1", tt.limit)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), max(tt.limit, 0))
		})
	}

	assert.Equal(t, []string{}, svc.History("unknown", 10))
}

func TestHistoryRecoversFromPanic(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		assert.Equal(t, []string{}, svc.History("s1", 3))
	})
}

func TestSnapshotIsACopy(t *testing.T) {
	svc := NewService(nil)
	svc.Append("s1", "a", RoleUser)
	snap := svc.Snapshot("s1")
	snap[0] = "mutated"
	assert.NotEqual(t, "mutated", svc.Snapshot("s1")[0])
	assert.Equal(t, []string{}, svc.Snapshot("unknown"))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{entries: map[string][]string{"s1": {"x"}}}
	svc := NewService(loader)
	svc.GetOrCreate(ctx, "s1")
	svc.Delete("s1")
	assert.Equal(t, StateAbsent, svc.State("s1"))
	assert.Empty(t, svc.Snapshot("s1"))
}

func TestEntryRoundTrip(t *testing.T) {
	ts := time.Date(2025, 5, 17, 9, 5, 7, 0, time.Local)
	raw := FormatEntry(ts, RoleAssistant, "'저녁' 일정을 추가했습니다.\n두 번째 줄")
	assert.Equal(t, "[2025-05-17 09:05:07] assistant: '저녁' 일정을 추가했습니다.\n두 번째 줄", raw)

	entry, ok := ParseEntry(raw)
	require.True(t, ok)
	assert.True(t, ts.Equal(entry.Timestamp))
	assert.Equal(t, RoleAssistant, entry.Role)
	assert.Equal(t, raw, entry.String())

	_, ok = ParseEntry("not an entry")
	assert.False(t, ok)
}
