// Package memory provides per-session conversational memory for the assistant.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Entry roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// EntryTimeLayout is the timestamp layout embedded in formatted entries.
const EntryTimeLayout = "2006-01-02 15:04:05"

// MemoryService defines the conversational memory operations used by the orchestrator.
type MemoryService interface {
	// GetOrCreate returns the handle for a session, staging any persisted
	// entries as pending the first time the session is seen.
	GetOrCreate(ctx context.Context, sessionID string) *Handle

	// RestorePending merges staged entries into the live sequence.
	// Returns the number of entries merged; 0 when nothing was pending.
	RestorePending(sessionID string) int

	// Append formats and appends an entry, creating the session if absent.
	Append(sessionID, text, role string) string

	// Snapshot returns the live entries in insertion order.
	Snapshot(sessionID string) []string

	// History returns at most limit of the most recent live entries.
	History(sessionID string, limit int) []string

	// Delete drops live and pending state for the session.
	Delete(sessionID string)
}

// Loader reads the persisted memory snapshot of a session.
// *store.Store satisfies it.
type Loader interface {
	LoadMemory(ctx context.Context, sessionID string) ([]string, error)
}

// Entry is a parsed memory line.
type Entry struct {
	Timestamp time.Time
	Role      string
	Text      string
}

var entryPattern = regexp.MustCompile(`(?s)^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] ([A-Za-z_]+): (.*)$`)

// FormatEntry renders an entry as "[YYYY-MM-DD HH:MM:SS] role: text".
func FormatEntry(ts time.Time, role, text string) string {
	return fmt.Sprintf("[%s] %s: %s", ts.Format(EntryTimeLayout), role, text)
}

// ParseEntry splits a formatted entry back into its parts.
// ok is false for strings that were not produced by FormatEntry.
func ParseEntry(raw string) (entry Entry, ok bool) {
	m := entryPattern.FindStringSubmatch(raw)
	if m == nil {
		return Entry{}, false
	}
	ts, err := time.ParseInLocation(EntryTimeLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Timestamp: ts, Role: m[2], Text: m[3]}, true
}

// String re-renders the entry in its persisted form.
func (e Entry) String() string {
	return FormatEntry(e.Timestamp, e.Role, e.Text)
}
