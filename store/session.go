package store

import (
	"time"
)

// TimeLayout is the ISO-8601 layout used for persisted timestamps.
const TimeLayout = "2006-01-02T15:04:05.000000"

// Session is the metadata of one durable conversation.
type Session struct {
	ID string
	// UserID is the strategy-derived identifier; empty when the session was
	// created without one.
	UserID       string
	CreatedAt    time.Time
	LastActive   time.Time
	MessageCount int
}

// Touch records a completed exchange: last-active moves to now and the
// message counter grows by one. last-active never moves before created-at.
func (s *Session) Touch(now time.Time) {
	if now.Before(s.CreatedAt) {
		now = s.CreatedAt
	}
	s.LastActive = now
	s.MessageCount++
}

// Clone returns a copy that can be handed out without sharing state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Summary returns the display form of the session.
func (s *Session) Summary() *SessionSummary {
	return &SessionSummary{
		SessionID:    s.ID,
		UserID:       s.UserID,
		CreatedAt:    FormatTime(s.CreatedAt),
		LastActive:   FormatTime(s.LastActive),
		MessageCount: s.MessageCount,
	}
}

// SessionRecord pairs session metadata with its memory snapshot. It is the
// unit of persistence: drivers write and read it as a whole.
type SessionRecord struct {
	Session *Session
	// Memory holds the formatted memory entries in insertion order.
	Memory []string
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	CreatedAt    string `json:"created_at"`
	LastActive   string `json:"last_active"`
	MessageCount int    `json:"message_count"`
}

// FormatTime renders t in the persisted ISO-8601 form.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseTime accepts the persisted layout as well as RFC 3339 timestamps.
// Timestamps without a zone are read as local time.
func ParseTime(value string) (time.Time, error) {
	layouts := []string{
		TimeLayout,
		"2006-01-02T15:04:05",
		time.RFC3339Nano,
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
