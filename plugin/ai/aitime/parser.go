package aitime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Default start of an event when the input names a day but no time.
const (
	DefaultHour   = 9
	DefaultMinute = 0
)

// Date patterns, tried in order. Each match is removed before the time
// patterns run so day numbers are not read as hours.
var (
	isoDatePattern     = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)
	koreanYearPattern  = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	koreanDatePattern  = regexp.MustCompile(`(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	monthDayPattern    = regexp.MustCompile(`(?i)\b(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(\d{4}))?`)
	dayMonthPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(january|jan|february|feb|march|mar|april|apr|may|june|jun|july|jul|august|aug|september|sept|sep|october|oct|november|nov|december|dec)\b\.?(?:,?\s*(\d{4}))?`)
	slashDatePattern   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
	koreanWeekdayRegex = regexp.MustCompile(`(이번\s*주|다음\s*주|담주)?\s*([월화수목금토일])요일`)
)

// Time patterns.
var (
	meridiemPattern   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.m\.|p\.m\.|am\b|pm\b)`)
	clockPattern      = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::\d{2})?`)
	koreanHourPattern = regexp.MustCompile(`(\d{1,2})\s*시(?:\s*(\d{1,2})\s*분|\s*(반))?`)
)

var monthNames = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// relDateOffsets maps relative date keywords to day offsets. Longer keywords
// come first so "day after tomorrow" is not read as "tomorrow".
var relDateOffsets = []struct {
	keyword string
	offset  int
}{
	{"day after tomorrow", 2},
	{"tomorrow", 1},
	{"yesterday", -1},
	{"today", 0},
	{"그저께", -2},
	{"그제", -2},
	{"어제", -1},
	{"오늘", 0},
	{"내일모레", 2},
	{"내일", 1},
	{"모레", 2},
	{"글피", 3},
}

var koreanWeekdays = map[string]time.Weekday{
	"일": time.Sunday,
	"월": time.Monday,
	"화": time.Tuesday,
	"수": time.Wednesday,
	"목": time.Thursday,
	"금": time.Friday,
	"토": time.Saturday,
}

var (
	pmModifiers = []string{"오후", "저녁", "밤"}
	amModifiers = []string{"오전", "새벽", "아침"}
)

// Parser parses natural language date and time expressions.
type Parser struct {
	timezone *time.Location
	now      func() time.Time
}

var _ TimeService = (*Parser)(nil)

// NewParser creates a new time parser with the given timezone.
func NewParser(timezone *time.Location) *Parser {
	if timezone == nil {
		timezone = time.Local
	}
	return &Parser{
		timezone: timezone,
		now:      time.Now,
	}
}

// WithClock returns a parser that reads the current time from now.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	return &Parser{
		timezone: p.timezone,
		now:      now,
	}
}

// Location returns the parser's timezone.
func (p *Parser) Location() *time.Location {
	return p.timezone
}

// Parse parses a date/time expression and returns the parsed time.
func (p *Parser) Parse(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrUnparseable)
	}

	now := p.now().In(p.timezone)

	if t, ok := p.tryStandardFormats(input, now); ok {
		return t, nil
	}

	day, rest, dateFound, err := p.parseDatePart(input, now)
	if err != nil {
		return time.Time{}, err
	}

	hour, minute, timeFound := parseTimePart(rest)
	switch {
	case timeFound:
	case dateFound:
		hour, minute = DefaultHour, DefaultMinute
	default:
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnparseable, input)
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.timezone), nil
}

// ParseDay returns [00:00:00, 23:59:59] of the parsed day.
func (p *Parser) ParseDay(input string) (TimeRange, error) {
	t, err := p.Parse(input)
	if err != nil {
		return TimeRange{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.timezone)
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, p.timezone)
	return TimeRange{Start: start, End: end}, nil
}

// tryStandardFormats attempts to parse whole-string machine formats.
func (p *Parser) tryStandardFormats(input string, now time.Time) (time.Time, bool) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02 15:04",
		"15:04:05",
		"15:04",
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, input, p.timezone); err == nil {
			// If only time, use today's date
			if format == "15:04:05" || format == "15:04" {
				return time.Date(now.Year(), now.Month(), now.Day(),
					t.Hour(), t.Minute(), t.Second(), 0, p.timezone), true
			}
			return t.In(p.timezone), true
		}
	}
	return time.Time{}, false
}

// parseDatePart finds the day named in input. It returns the day (today when
// none is named), the input with the date text removed, and whether a date
// was found.
func (p *Parser) parseDatePart(input string, now time.Time) (day time.Time, rest string, found bool, err error) {
	type datePattern struct {
		re      *regexp.Regexp
		extract func(m []string) (year int, month time.Month, dom int)
	}
	currentYear := now.Year()
	yearOr := func(s string) int {
		if s == "" {
			return currentYear
		}
		y, _ := strconv.Atoi(s)
		return y
	}
	patterns := []datePattern{
		{isoDatePattern, func(m []string) (int, time.Month, int) {
			return yearOr(m[1]), time.Month(atoi(m[2])), atoi(m[3])
		}},
		{koreanYearPattern, func(m []string) (int, time.Month, int) {
			return yearOr(m[1]), time.Month(atoi(m[2])), atoi(m[3])
		}},
		{koreanDatePattern, func(m []string) (int, time.Month, int) {
			return currentYear, time.Month(atoi(m[1])), atoi(m[2])
		}},
		{monthDayPattern, func(m []string) (int, time.Month, int) {
			return yearOr(m[3]), monthNames[strings.ToLower(m[1])[:3]], atoi(m[2])
		}},
		{dayMonthPattern, func(m []string) (int, time.Month, int) {
			return yearOr(m[3]), monthNames[strings.ToLower(m[2])[:3]], atoi(m[1])
		}},
		{slashDatePattern, func(m []string) (int, time.Month, int) {
			return currentYear, time.Month(atoi(m[1])), atoi(m[2])
		}},
	}

	for _, pattern := range patterns {
		loc := pattern.re.FindStringSubmatchIndex(input)
		if loc == nil {
			continue
		}
		m := submatches(input, loc)
		year, month, dom := pattern.extract(m)
		day, ok := validDate(year, month, dom, p.timezone)
		if !ok {
			return time.Time{}, "", false, fmt.Errorf("%w: invalid date %q", ErrUnparseable, m[0])
		}
		return day, input[:loc[0]] + " " + input[loc[1]:], true, nil
	}

	lower := strings.ToLower(input)
	for _, rel := range relDateOffsets {
		if idx := strings.Index(lower, rel.keyword); idx >= 0 {
			day := now.AddDate(0, 0, rel.offset)
			return day, lower[:idx] + " " + lower[idx+len(rel.keyword):], true, nil
		}
	}

	if loc := koreanWeekdayRegex.FindStringSubmatchIndex(input); loc != nil {
		m := submatches(input, loc)
		return weekdayDate(now, m[1], koreanWeekdays[m[2]]), input[:loc[0]] + " " + input[loc[1]:], true, nil
	}

	return now, input, false, nil
}

// weekdayDate resolves a weekday. Without a week qualifier it is the next
// occurrence on or after today; "이번 주" and "다음 주" use Monday-based weeks.
func weekdayDate(now time.Time, week string, target time.Weekday) time.Time {
	week = strings.Join(strings.Fields(week), "")
	if week == "" {
		diff := (int(target) - int(now.Weekday()) + 7) % 7
		return now.AddDate(0, 0, diff)
	}
	mondayOffset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -mondayOffset)
	targetOffset := (int(target) + 6) % 7
	day := monday.AddDate(0, 0, targetOffset)
	if week == "다음주" || week == "담주" {
		day = day.AddDate(0, 0, 7)
	}
	return day
}

// parseTimePart parses the time part of an expression.
func parseTimePart(input string) (hour, minute int, found bool) {
	lower := strings.ToLower(input)

	switch {
	case strings.Contains(input, "정오"):
		return 12, 0, true
	case strings.Contains(input, "자정"):
		return 0, 0, true
	}

	if m := meridiemPattern.FindStringSubmatch(lower); m != nil {
		hour, minute = atoi(m[1]), atoi(m[2])
		pm := strings.HasPrefix(m[3], "p")
		if hour > 12 || minute > 59 {
			return 0, 0, false
		}
		if pm && hour != 12 {
			hour += 12
		}
		if !pm && hour == 12 {
			hour = 0
		}
		return hour, minute, true
	}

	if m := clockPattern.FindStringSubmatch(input); m != nil {
		hour, minute = atoi(m[1]), atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, 0, false
		}
		return applyKoreanMeridiem(input, hour), minute, true
	}

	if m := koreanHourPattern.FindStringSubmatch(input); m != nil {
		hour = atoi(m[1])
		switch {
		case m[2] != "":
			minute = atoi(m[2])
		case m[3] != "":
			minute = 30
		}
		if hour > 24 || minute > 59 {
			return 0, 0, false
		}
		if hour == 24 {
			hour = 0
		}
		return applyKoreanMeridiem(input, hour), minute, true
	}

	return 0, 0, false
}

// applyKoreanMeridiem shifts hour for 오후/오전 style modifiers.
// 오후 12시 stays 12; 오전 12시 is midnight.
func applyKoreanMeridiem(input string, hour int) int {
	if hour > 12 {
		return hour
	}
	for _, mod := range pmModifiers {
		if strings.Contains(input, mod) {
			if hour != 12 {
				hour += 12
			}
			return hour
		}
	}
	for _, mod := range amModifiers {
		if strings.Contains(input, mod) {
			if hour == 12 {
				hour = 0
			}
			return hour
		}
	}
	return hour
}

func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func submatches(input string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = input[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
