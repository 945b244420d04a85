package calendar

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Runner executes an AppleScript program and returns its trimmed output.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// OSAScript runs scripts through the osascript executable.
type OSAScript struct {
	// Path is the osascript executable (default: osascript).
	Path string
}

// Run executes script with osascript -e.
func (o OSAScript) Run(ctx context.Context, script string) (string, error) {
	path := o.Path
	if path == "" {
		path = "osascript"
	}

	cmd := exec.CommandContext(ctx, path, "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Debug("osascript failed", "error", err, "stderr", stderr.String())
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.Errorf("AppleScript 실행 오류: %s", msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsAvailable checks if osascript can be started.
func (o OSAScript) IsAvailable() bool {
	path := o.Path
	if path == "" {
		path = "osascript"
	}
	_, err := exec.LookPath(path)
	return err == nil
}

// AppleScriptBackend drives the macOS Calendar app.
type AppleScriptBackend struct {
	runner Runner
}

var _ Backend = (*AppleScriptBackend)(nil)

// NewAppleScriptBackend creates a backend running scripts through runner,
// osascript when nil.
func NewAppleScriptBackend(runner Runner) *AppleScriptBackend {
	if runner == nil {
		runner = OSAScript{}
	}
	return &AppleScriptBackend{runner: runner}
}

// isoHandlers renders dates as EventTimeLayout regardless of the user's locale.
const isoHandlers = `
on pad(n)
	return text -2 thru -1 of ("0" & (n as integer))
end pad
on isoDate(d)
	return (year of d as string) & "-" & my pad(month of d as integer) & "-" & my pad(day of d) & "T" & my pad(hours of d) & ":" & my pad(minutes of d) & ":" & my pad(seconds of d)
end isoDate
`

const eventSeparator = "|||"

func (b *AppleScriptBackend) Insert(ctx context.Context, calendar, title string, start, end time.Time) error {
	script := fmt.Sprintf(`
tell application "Calendar"
	tell calendar "%s"
%s
%s
		make new event at end with properties {summary:"%s", start date:startDate, end date:endDate}
	end tell
end tell
`, quote(calendar), dateAssignment("startDate", start), dateAssignment("endDate", end), quote(title))

	_, err := b.runner.Run(ctx, script)
	return err
}

func (b *AppleScriptBackend) Find(ctx context.Context, calendar string, start, end time.Time) ([]Event, error) {
	script := fmt.Sprintf(`%s
tell application "Calendar"
	if not (exists calendar "%s") then error "calendar not found"
	tell calendar "%s"
%s
%s
		set eventList to every event whose start date ≥ startDate and start date ≤ endDate
		set eventInfo to {}
		repeat with anEvent in eventList
			set end of eventInfo to (summary of anEvent) & "%s" & my isoDate(start date of anEvent) & "%s" & my isoDate(end date of anEvent)
		end repeat
		set AppleScript's text item delimiters to linefeed
		return eventInfo as string
	end tell
end tell
`, isoHandlers, quote(calendar), quote(calendar),
		dateAssignment("startDate", start), dateAssignment("endDate", end),
		eventSeparator, eventSeparator)

	out, err := b.runner.Run(ctx, script)
	if err != nil {
		return nil, err
	}
	return parseEventList(out, calendar), nil
}

func (b *AppleScriptBackend) Exists(ctx context.Context, calendar, title string) (bool, error) {
	script := fmt.Sprintf(`
tell application "Calendar"
	tell calendar "%s"
		if (count of (every event whose summary is "%s")) > 0 then
			return "found"
		end if
		return "not found"
	end tell
end tell
`, quote(calendar), quote(title))

	out, err := b.runner.Run(ctx, script)
	if err != nil {
		return false, err
	}
	return out == "found", nil
}

func (b *AppleScriptBackend) Modify(ctx context.Context, calendar, title string, change Change) error {
	var commands []string
	if change.NewTitle != "" {
		commands = append(commands, fmt.Sprintf(`		set summary of targetEvent to "%s"`, quote(change.NewTitle)))
	}
	if change.Start != nil {
		commands = append(commands, dateAssignment("newStart", *change.Start),
			"		set start date of targetEvent to newStart")
	}
	if change.End != nil {
		commands = append(commands, dateAssignment("newEnd", *change.End),
			"		set end date of targetEvent to newEnd")
	}
	if len(commands) == 0 {
		return ErrNothingToUpdate
	}

	script := fmt.Sprintf(`
tell application "Calendar"
	tell calendar "%s"
		set matches to every event whose summary is "%s"
		if (count of matches) = 0 then return "not found"
		set targetEvent to first item of matches
%s
		return "updated"
	end tell
end tell
`, quote(calendar), quote(title), strings.Join(commands, "\n"))

	out, err := b.runner.Run(ctx, script)
	if err != nil {
		return err
	}
	if out == "not found" {
		return ErrEventNotFound
	}
	return nil
}

func (b *AppleScriptBackend) Remove(ctx context.Context, calendar, title string, day *DayRange) (bool, error) {
	filter := fmt.Sprintf(`summary is "%s"`, quote(title))
	var bounds string
	if day != nil {
		bounds = dateAssignment("dayStart", day.Start) + "\n" + dateAssignment("dayEnd", day.End)
		filter += " and start date ≥ dayStart and start date ≤ dayEnd"
	}

	script := fmt.Sprintf(`
tell application "Calendar"
	tell calendar "%s"
%s
		set targetEvents to every event whose %s
		if (count of targetEvents) > 0 then
			delete first item of targetEvents
			return "deleted"
		end if
		return "not found"
	end tell
end tell
`, quote(calendar), bounds, filter)

	out, err := b.runner.Run(ctx, script)
	if err != nil {
		return false, err
	}
	return out == "deleted", nil
}

// parseEventList reads one event per line as title|||start|||end. Lines
// without separators are titles whose times are unknown.
func parseEventList(out, calendar string) []Event {
	var events []Event
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, eventSeparator)
		if len(parts) >= 3 {
			events = append(events, Event{
				Title:     strings.TrimSpace(parts[0]),
				StartTime: strings.TrimSpace(parts[1]),
				EndTime:   strings.TrimSpace(parts[2]),
				Calendar:  calendar,
			})
			continue
		}
		events = append(events, Event{
			Title:     strings.TrimSpace(parts[0]),
			StartTime: NoTimeInfo,
			EndTime:   NoTimeInfo,
			Calendar:  calendar,
		})
	}
	return events
}

// dateAssignment builds an AppleScript date component by component so the
// result does not depend on the user's date format. The day is reset first so
// moving to a shorter month cannot overflow.
func dateAssignment(name string, t time.Time) string {
	return fmt.Sprintf(`		set %[1]s to (current date)
		set day of %[1]s to 1
		set year of %[1]s to %[2]d
		set month of %[1]s to %[3]d
		set day of %[1]s to %[4]d
		set hours of %[1]s to %[5]d
		set minutes of %[1]s to %[6]d
		set seconds of %[1]s to %[7]d`,
		name, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// quote escapes s for use inside an AppleScript string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
