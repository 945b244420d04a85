// Package timezone resolves the configured IANA timezone used to read and
// write calendar dates.
package timezone

import (
	"fmt"
	"time"
	// Hosts without a zoneinfo database still resolve named zones.
	_ "time/tzdata"
)

// ParseTimezone parses an IANA timezone identifier (e.g., "Asia/Seoul").
// An empty identifier selects the host's local zone. If the timezone is
// invalid, returns time.Local and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	switch tz {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Clock returns a time source reporting the current time in loc.
func Clock(loc *time.Location) func() time.Time {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}
