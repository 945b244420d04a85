// Package aitime parses the date and time expressions users hand to the calendar tools.
package aitime

import (
	"errors"
	"time"
)

// ErrUnparseable is returned when no date or time can be read from the input.
var ErrUnparseable = errors.New("날짜 파싱 실패")

// TimeService defines the time parsing operations used by the calendar.
type TimeService interface {
	// Parse reads a date and optional time, e.g. "5월 17일 오후 7시",
	// "May 17th 19:00", "내일", "2025-05-17". Dates without a year resolve to
	// the current year; a missing time defaults to 09:00.
	Parse(input string) (time.Time, error)

	// ParseDay returns the whole day containing the parsed date.
	ParseDay(input string) (TimeRange, error)
}

// TimeRange represents a time range.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
