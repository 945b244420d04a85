package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/macagent/plugin/ai/aitime"
)

const (
	messageDateTimeLayout = "2006년 01월 02일 15:04"
	messageDateLayout     = "2006년 01월 02일"

	// maxConcurrentLookups bounds parallel osascript processes.
	maxConcurrentLookups = 3
)

// Service implements Capability on top of a Backend.
type Service struct {
	backend   Backend
	parser    aitime.TimeService
	calendar  string
	searchSet []string
	now       func() time.Time
}

var _ Capability = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source used for the default search window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSearchCalendars replaces the calendars scanned by GetEvents. The
// configured calendar is always scanned first.
func WithSearchCalendars(names ...string) Option {
	return func(s *Service) { s.searchSet = names }
}

// NewService creates a calendar service writing to calendarName.
func NewService(backend Backend, parser aitime.TimeService, calendarName string, opts ...Option) *Service {
	if calendarName == "" {
		calendarName = DefaultCalendarName
	}
	s := &Service{
		backend:   backend,
		parser:    parser,
		calendar:  calendarName,
		searchSet: SearchCalendars,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalendarName returns the calendar new events are written to.
func (s *Service) CalendarName() string {
	return s.calendar
}

// CreateEvent adds an event starting at dateStr (plus timeStr when given)
// lasting durationMinutes, 60 when not positive.
func (s *Service) CreateEvent(ctx context.Context, dateStr, title, timeStr string, durationMinutes int) *Result {
	start, end, err := s.createWindow(dateStr, title, timeStr, durationMinutes)
	if err == nil {
		err = s.backend.Insert(ctx, s.calendar, title, start, end)
	}
	if err != nil {
		slog.Warn("calendar create failed", "title", title, "date", dateStr, "error", err)
		return failure("일정 생성 실패", err)
	}

	slog.Debug("calendar event created", "title", title, "start", start)
	return &Result{
		Success: true,
		Message: fmt.Sprintf("'%s' 일정을 %s에 추가했습니다.", title, start.Format(messageDateTimeLayout)),
		Event: &Event{
			Title:     title,
			StartTime: start.Format(EventTimeLayout),
			EndTime:   end.Format(EventTimeLayout),
			Calendar:  s.calendar,
		},
	}
}

func (s *Service) createWindow(dateStr, title, timeStr string, durationMinutes int) (time.Time, time.Time, error) {
	if strings.TrimSpace(title) == "" {
		return time.Time{}, time.Time{}, ErrEmptyTitle
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	start, err := s.parser.Parse(joinDateTime(dateStr, timeStr))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Duration(durationMinutes) * time.Minute), nil
}

// GetEvents lists events across the search calendars. With dateStr the search
// covers that whole day; otherwise it runs from 30*monthsRange days before the
// first of the current month to 30*monthsRange days from now. keywords filters
// titles case-insensitively.
func (s *Service) GetEvents(ctx context.Context, dateStr, keywords string, monthsRange int) *Result {
	if monthsRange <= 0 {
		monthsRange = DefaultMonthsRange
	}

	var start, end time.Time
	if strings.TrimSpace(dateStr) != "" {
		day, err := s.parser.ParseDay(dateStr)
		if err != nil {
			return failure("일정 조회 실패", err)
		}
		start, end = day.Start, day.End
	} else {
		now := s.now()
		span := 30 * monthsRange
		firstOfMonth := time.Date(now.Year(), now.Month(), 1,
			now.Hour(), now.Minute(), now.Second(), 0, now.Location())
		start = firstOfMonth.AddDate(0, 0, -span)
		end = now.AddDate(0, 0, span)
	}

	events, err := s.findAll(ctx, start, end)
	if err != nil {
		return failure("일정 조회 실패", err)
	}

	events = filterByKeywords(events, keywords)
	sortEvents(events)

	var rangeInfo string
	if strings.TrimSpace(dateStr) == "" {
		rangeInfo = fmt.Sprintf(" (검색 범위: %s ~ %s)",
			start.Format(messageDateLayout), end.Format(messageDateLayout))
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%d개의 일정을 찾았습니다.%s", len(events), rangeInfo),
		Events:  events,
		SearchRange: &SearchRange{
			Start: start.Format(EventTimeLayout),
			End:   end.Format(EventTimeLayout),
		},
	}
}

// UpdateEvent renames and/or moves the first event titled originalTitle.
// Moving requires a new date; a new time alone is rejected.
func (s *Service) UpdateEvent(ctx context.Context, originalTitle, newDateStr, newTimeStr, newTitle string) *Result {
	exists, err := s.backend.Exists(ctx, s.calendar, originalTitle)
	if err != nil {
		return failure("일정 수정 실패", err)
	}
	if !exists {
		return notFound(originalTitle)
	}

	change := Change{NewTitle: strings.TrimSpace(newTitle)}
	switch {
	case strings.TrimSpace(newDateStr) != "":
		start, err := s.parser.Parse(joinDateTime(newDateStr, newTimeStr))
		if err != nil {
			return failure("일정 수정 실패", err)
		}
		end := start.Add(DefaultDurationMinutes * time.Minute)
		change.Start, change.End = &start, &end
	case strings.TrimSpace(newTimeStr) != "":
		return &Result{Message: ErrTimeOnlyUpdate.Error()}
	}
	if change.IsEmpty() {
		return &Result{Message: ErrNothingToUpdate.Error()}
	}

	if err := s.backend.Modify(ctx, s.calendar, originalTitle, change); err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return notFound(originalTitle)
		}
		slog.Warn("calendar update failed", "title", originalTitle, "error", err)
		return failure("일정 수정 실패", err)
	}

	slog.Debug("calendar event updated", "title", originalTitle, "new_title", change.NewTitle)
	return &Result{
		Success: true,
		Message: fmt.Sprintf("'%s' 일정이 수정되었습니다.", originalTitle),
	}
}

// DeleteEvent removes the first event titled title, restricted to the day
// named by dateStr when given.
func (s *Service) DeleteEvent(ctx context.Context, title, dateStr string) *Result {
	var day *DayRange
	if strings.TrimSpace(dateStr) != "" {
		r, err := s.parser.ParseDay(dateStr)
		if err != nil {
			return failure("일정 삭제 실패", err)
		}
		day = &DayRange{Start: r.Start, End: r.End}
	}

	removed, err := s.backend.Remove(ctx, s.calendar, title, day)
	if err != nil {
		slog.Warn("calendar delete failed", "title", title, "error", err)
		return failure("일정 삭제 실패", err)
	}
	if !removed {
		return notFound(title)
	}

	slog.Debug("calendar event deleted", "title", title)
	return &Result{
		Success: true,
		Message: fmt.Sprintf("'%s' 일정이 삭제되었습니다.", title),
	}
}

// calendars returns the configured calendar followed by the search set,
// without duplicates.
func (s *Service) calendars() []string {
	seen := make(map[string]bool, len(s.searchSet)+1)
	names := make([]string, 0, len(s.searchSet)+1)
	for _, name := range append([]string{s.calendar}, s.searchSet...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func joinDateTime(dateStr, timeStr string) string {
	dateStr, timeStr = strings.TrimSpace(dateStr), strings.TrimSpace(timeStr)
	if timeStr == "" {
		return dateStr
	}
	return dateStr + " " + timeStr
}

func filterByKeywords(events []Event, keywords string) []Event {
	keywords = strings.ToLower(strings.TrimSpace(keywords))
	if keywords == "" {
		return events
	}
	filtered := events[:0]
	for _, e := range events {
		if strings.Contains(strings.ToLower(e.Title), keywords) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// sortEvents orders events by start time; events without one go last.
func sortEvents(events []Event) {
	key := func(e Event) string {
		if e.StartTime == "" || strings.Contains(e.StartTime, NoTimeInfo) {
			return "9999-12-31"
		}
		return e.StartTime
	}
	sort.SliceStable(events, func(i, j int) bool {
		return key(events[i]) < key(events[j])
	})
}

func failure(prefix string, err error) *Result {
	return &Result{
		Message: fmt.Sprintf("%s: %s", prefix, err),
		Error:   err.Error(),
	}
}

func notFound(title string) *Result {
	return &Result{Message: fmt.Sprintf("'%s' 일정을 찾을 수 없습니다.", title)}
}

// findAll queries every searched calendar concurrently. Missing or
// inaccessible calendars are skipped; only cancellation fails the lookup.
func (s *Service) findAll(ctx context.Context, start, end time.Time) ([]Event, error) {
	names := s.calendars()
	found := make([][]Event, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			events, err := s.backend.Find(gctx, name, start, end)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				slog.Debug("skipping calendar", "calendar", name, "error", err)
				return nil
			}
			found[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var events []Event
	for _, list := range found {
		events = append(events, list...)
	}
	return events, nil
}
