package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/macagent/store"
	"github.com/hrygo/macagent/store/db/file"
)

type fakeEnv struct {
	ppid    int
	user    string
	userErr error
	wd      string
}

func (e fakeEnv) ParentPID() int              { return e.ppid }
func (e fakeEnv) Username() (string, error)   { return e.user, e.userErr }
func (e fakeEnv) WorkingDir() (string, error) { return e.wd, nil }

// steppingClock advances one second per call.
func steppingClock() func() time.Time {
	ts := time.Date(2025, 5, 17, 9, 0, 0, 0, time.Local)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := file.Open(t.TempDir())
	require.NoError(t, err)
	return store.New(driver, nil)
}

func newTestRegistry(t *testing.T, st SessionStore, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{
		WithEnvironment(fakeEnv{ppid: 4242, user: "alice", wd: "/Users/alice/projects/macagent"}),
		WithClock(steppingClock()),
	}, opts...)
	r, err := NewRegistry(context.Background(), st, opts...)
	require.NoError(t, err)
	return r
}

func TestDeriveUserID(t *testing.T) {
	env := fakeEnv{ppid: 4242, user: "alice", wd: "/Users/alice/projects/macagent"}
	tests := []struct {
		name     string
		strategy Strategy
		custom   string
		env      Environment
		want     string
	}{
		{"terminal pid", StrategyTerminalPID, "", env, "terminal_4242"},
		{"system user", StrategySystemUser, "", env, "alice"},
		{"system user unavailable", StrategySystemUser, "", fakeEnv{userErr: errors.New("no user")}, "unknown_user"},
		{"custom", StrategyCustom, "kim", env, "kim"},
		{"custom empty", StrategyCustom, "", env, "custom_user"},
		{"directory", StrategyDirectory, "", env, "dir_macagent"},
		{"recent derives like terminal", StrategyRecent, "", env, "terminal_4242"},
		{"default", StrategyDefault, "", env, "terminal_4242"},
		{"no parent", StrategyTerminalPID, "", fakeEnv{}, "unknown_terminal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveUserID(tt.strategy, tt.custom, tt.env))
		})
	}
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyCustom, ParseStrategy("custom"))
	assert.Equal(t, StrategyRecent, ParseStrategy(" RECENT "))
	assert.Equal(t, StrategyDefault, ParseStrategy("bogus"))
	assert.Equal(t, StrategyDefault, ParseStrategy(""))
}

func TestCreateSessionPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	r := newTestRegistry(t, st)

	id := r.CreateSession(ctx, "kim")
	s := r.GetSession(id)
	require.NotNil(t, s)
	assert.Equal(t, "kim", s.UserID)
	assert.Equal(t, 0, s.MessageCount)
	assert.True(t, s.CreatedAt.Equal(s.LastActive))

	record, err := st.LoadSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Empty(t, record.Memory)
}

func TestResolveCustomTwiceReturnsSameSession(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t))

	first := r.ResolveByStrategy(ctx, StrategyCustom, "kim")
	second := r.ResolveByStrategy(ctx, StrategyCustom, "kim")

	assert.Equal(t, first, second)
	assert.Len(t, r.ListSessions(), 1)
	assert.Equal(t, 1, r.GetSession(first).MessageCount, "matching an existing session bumps its activity")
}

func TestResolveRecentPicksMostRecentlyActive(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t))

	a := r.CreateSession(ctx, "a")
	b := r.CreateSession(ctx, "b")
	c := r.CreateSession(ctx, "c")
	r.UpdateActivity(a)
	r.UpdateActivity(c)
	r.UpdateActivity(b) // b is now the most recent

	got := r.ResolveByStrategy(ctx, StrategyRecent, "")
	assert.Equal(t, b, got)
	assert.Len(t, r.ListSessions(), 3)
}

func TestResolveRecentPrefersMatchingTerminal(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t))

	mine := r.CreateSession(ctx, "terminal_4242")
	other := r.CreateSession(ctx, "other")
	r.UpdateActivity(other)

	assert.Equal(t, mine, r.ResolveByStrategy(ctx, StrategyRecent, ""))
}

func TestResolveRecentWithoutSessionsCreates(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t))

	id := r.ResolveByStrategy(ctx, StrategyRecent, "")
	s := r.GetSession(id)
	require.NotNil(t, s)
	assert.Equal(t, "terminal_4242", s.UserID)
}

func TestResolveUnknownUserCreates(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t))
	r.CreateSession(ctx, "someone")

	id := r.ResolveByStrategy(ctx, StrategyDirectory, "")
	assert.Equal(t, "dir_macagent", r.GetSession(id).UserID)
	assert.Len(t, r.ListSessions(), 2)
}

func TestUpdateActivity(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	r := newTestRegistry(t, st)
	id := r.CreateSession(ctx, "")

	updated := r.UpdateActivity(id)
	require.NotNil(t, updated)
	assert.Equal(t, 1, updated.MessageCount)
	assert.True(t, updated.LastActive.After(updated.CreatedAt))

	// Not persisted by itself.
	record, err := st.LoadSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Session.MessageCount)

	assert.Nil(t, r.UpdateActivity("missing"))
}

func TestRegistryLoadsPersistedSessions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	r := newTestRegistry(t, st)
	ids := []string{r.CreateSession(ctx, "x"), r.CreateSession(ctx, "y"), r.CreateSession(ctx, "z")}

	reloaded := newTestRegistry(t, st)
	list := reloaded.ListSessions()
	require.Len(t, list, 3)
	for i, summary := range list {
		assert.Equal(t, ids[i], summary.SessionID, "sessions are ordered by creation time")
	}
	assert.Equal(t, ids[1], reloaded.ResolveByStrategy(ctx, StrategyCustom, "y"))
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	r := newTestRegistry(t, st)
	id := r.CreateSession(ctx, "kim")

	deleted, err := r.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Nil(t, r.GetSession(id))
	assert.Empty(t, r.ListSessions())

	record, err := st.LoadSession(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, record)

	deleted, err = r.DeleteSession(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t), WithIDGenerator(func() string { return "fixed-id" }))
	r.CreateSession(ctx, "kim")

	info, err := r.Info("fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", info.SessionID)
	assert.Equal(t, "kim", info.UserID)
	assert.Equal(t, "2025-05-17T09:00:01.000000", info.CreatedAt)

	_, err = r.Info("nope")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

type failingStore struct{}

func (failingStore) SaveSession(context.Context, *store.Session, []string) error {
	return errors.New("read-only filesystem")
}

func (failingStore) LoadAllSessions(context.Context) (map[string]*store.SessionRecord, error) {
	return map[string]*store.SessionRecord{}, nil
}

func (failingStore) DeleteSession(context.Context, string) (bool, error) {
	return false, errors.New("read-only filesystem")
}

func TestCreateSessionSurvivesPersistenceFailure(t *testing.T) {
	r := newTestRegistry(t, failingStore{})
	id := r.CreateSession(context.Background(), "kim")
	assert.NotNil(t, r.GetSession(id))
}

func TestConcurrentResolve(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t, newTestStore(t), WithClock(func() time.Time { return time.Now() }))

	done := make(chan string, 20)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- r.ResolveByStrategy(ctx, StrategyCustom, fmt.Sprintf("user-%d", i%4))
		}(i)
	}
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[<-done] = true
	}
	assert.LessOrEqual(t, len(seen), 20)
	assert.GreaterOrEqual(t, len(r.ListSessions()), 4)
}
