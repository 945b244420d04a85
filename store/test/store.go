package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/store"
	"github.com/hrygo/macagent/store/db"
)

// Drivers lists every storage driver the shared store tests run against.
var Drivers = []string{profile.DriverFile, profile.DriverSQLite}

// NewTestingStore creates a store backed by driver in a fresh temp directory.
func NewTestingStore(_ context.Context, t *testing.T, driver string) *store.Store {
	t.Helper()
	p := getTestingProfile(t, driver)
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	ts := store.New(dbDriver, p)
	t.Cleanup(func() {
		if err := ts.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})
	return ts
}

func getTestingProfile(t *testing.T, driver string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   t.TempDir(),
		Driver: driver,
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("failed to validate profile: %v", err)
	}
	return p
}

// getDriverFromEnv returns DRIVER when set, so a single driver can be targeted.
func getDriverFromEnv() string {
	return os.Getenv("DRIVER")
}

func driversUnderTest() []string {
	if driver := getDriverFromEnv(); driver != "" {
		return []string{driver}
	}
	return Drivers
}

// testTime returns a timestamp that survives the persisted microsecond layout.
func testTime(offset time.Duration) time.Time {
	return time.Date(2025, 5, 17, 9, 30, 0, 123456000, time.Local).Add(offset)
}
