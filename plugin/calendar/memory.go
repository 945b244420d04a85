package calendar

import (
	"context"
	"sync"
	"time"
)

type memoryEvent struct {
	title string
	start time.Time
	end   time.Time
}

// MemoryBackend keeps events in process. It backs tests and hosts without
// the Calendar app.
type MemoryBackend struct {
	mu        sync.RWMutex
	calendars map[string][]memoryEvent
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a backend holding the named, empty calendars.
func NewMemoryBackend(calendars ...string) *MemoryBackend {
	b := &MemoryBackend{calendars: make(map[string][]memoryEvent, len(calendars))}
	for _, name := range calendars {
		b.calendars[name] = nil
	}
	return b
}

func (b *MemoryBackend) Insert(ctx context.Context, calendar, title string, start, end time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	events, ok := b.calendars[calendar]
	if !ok {
		return ErrCalendarNotFound
	}
	b.calendars[calendar] = append(events, memoryEvent{title: title, start: start, end: end})
	return nil
}

func (b *MemoryBackend) Find(ctx context.Context, calendar string, start, end time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	events, ok := b.calendars[calendar]
	if !ok {
		return nil, ErrCalendarNotFound
	}
	var found []Event
	for _, e := range events {
		if e.start.Before(start) || e.start.After(end) {
			continue
		}
		found = append(found, Event{
			Title:     e.title,
			StartTime: e.start.Format(EventTimeLayout),
			EndTime:   e.end.Format(EventTimeLayout),
			Calendar:  calendar,
		})
	}
	return found, nil
}

func (b *MemoryBackend) Exists(ctx context.Context, calendar, title string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	events, ok := b.calendars[calendar]
	if !ok {
		return false, ErrCalendarNotFound
	}
	return indexOf(events, title, nil) >= 0, nil
}

func (b *MemoryBackend) Modify(ctx context.Context, calendar, title string, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	events, ok := b.calendars[calendar]
	if !ok {
		return ErrCalendarNotFound
	}
	i := indexOf(events, title, nil)
	if i < 0 {
		return ErrEventNotFound
	}
	if change.NewTitle != "" {
		events[i].title = change.NewTitle
	}
	if change.Start != nil {
		events[i].start = *change.Start
	}
	if change.End != nil {
		events[i].end = *change.End
	}
	return nil
}

func (b *MemoryBackend) Remove(ctx context.Context, calendar, title string, day *DayRange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	events, ok := b.calendars[calendar]
	if !ok {
		return false, ErrCalendarNotFound
	}
	i := indexOf(events, title, day)
	if i < 0 {
		return false, nil
	}
	b.calendars[calendar] = append(events[:i], events[i+1:]...)
	return true, nil
}

// Len returns the number of events in the named calendar.
func (b *MemoryBackend) Len(calendar string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.calendars[calendar])
}

func indexOf(events []memoryEvent, title string, day *DayRange) int {
	for i, e := range events {
		if e.title != title {
			continue
		}
		if day != nil && !day.Contains(e.start) {
			continue
		}
		return i
	}
	return -1
}
