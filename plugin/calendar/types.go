// Package calendar manages events in the user's calendar application.
//
// Service implements the operations exposed to the calendar agent and turns
// every outcome, failures included, into a Result the model can read.
// Backends do the actual reading and writing: AppleScriptBackend drives the
// macOS Calendar app through osascript and MemoryBackend keeps events in
// process.
package calendar

import (
	"context"
	"errors"
	"time"
)

// Defaults applied when the caller leaves a value out.
const (
	DefaultCalendarName    = "캘린더"
	DefaultDurationMinutes = 60
	DefaultMonthsRange     = 1

	// NoTimeInfo stands in for the start and end of events whose times the
	// backend could not report.
	NoTimeInfo = "시간 정보 없음"

	// EventTimeLayout is the layout of the start and end times in results.
	EventTimeLayout = "2006-01-02T15:04:05"
)

// SearchCalendars are the calendars scanned by GetEvents in addition to the
// configured one. Calendars that do not exist are skipped.
var SearchCalendars = []string{"캘린더", "Home", "홈", "Work", "집", "직장"}

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrCalendarNotFound = errors.New("calendar not found")
	ErrEmptyTitle       = errors.New("일정 제목이 비어 있습니다")
	ErrNothingToUpdate  = errors.New("수정할 내용이 없습니다.")
	ErrTimeOnlyUpdate   = errors.New("시간만 변경하는 기능은 아직 지원되지 않습니다.")
)

// Capability is the calendar surface the agent tools call.
// Every operation reports through Result and never returns an error.
type Capability interface {
	CreateEvent(ctx context.Context, dateStr, title, timeStr string, durationMinutes int) *Result
	GetEvents(ctx context.Context, dateStr, keywords string, monthsRange int) *Result
	UpdateEvent(ctx context.Context, originalTitle, newDateStr, newTimeStr, newTitle string) *Result
	DeleteEvent(ctx context.Context, title, dateStr string) *Result
}

// Event is one calendar event as reported to the model.
type Event struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Calendar  string `json:"calendar,omitempty"`
}

// SearchRange is the window scanned by a GetEvents call.
type SearchRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Result is the outcome of a calendar operation.
type Result struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Event       *Event       `json:"event,omitempty"`
	Events      []Event      `json:"events,omitempty"`
	SearchRange *SearchRange `json:"search_range,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Change describes an update to an existing event. Nil fields are left alone.
type Change struct {
	NewTitle string
	Start    *time.Time
	End      *time.Time
}

// IsEmpty reports whether the change would modify nothing.
func (c Change) IsEmpty() bool {
	return c.NewTitle == "" && c.Start == nil && c.End == nil
}

// Backend reads and writes events in a calendar store.
type Backend interface {
	// Insert adds an event to the named calendar.
	Insert(ctx context.Context, calendar, title string, start, end time.Time) error
	// Find lists the events of the named calendar starting within [start, end].
	Find(ctx context.Context, calendar string, start, end time.Time) ([]Event, error)
	// Exists reports whether the calendar holds an event with the exact title.
	Exists(ctx context.Context, calendar, title string) (bool, error)
	// Modify applies change to the first event with the exact title.
	Modify(ctx context.Context, calendar, title string, change Change) error
	// Remove deletes the first event with the exact title, restricted to
	// events starting within day when day is not nil. It reports whether an
	// event was deleted.
	Remove(ctx context.Context, calendar, title string, day *DayRange) (bool, error)
}

// DayRange bounds a single day, both ends inclusive.
type DayRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range.
func (r *DayRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
