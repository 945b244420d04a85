package agent

import "errors"

var (
	// ErrToolNotFound indicates the model asked for a tool the agent does not have.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNoStructuredOutput indicates a structured agent answered without a
	// valid JSON object.
	ErrNoStructuredOutput = errors.New("no structured output")

	// ErrInvalidBudget indicates an exchange was started with a message cap
	// that leaves no room for an agent turn.
	ErrInvalidBudget = errors.New("message budget must allow at least one agent turn")
)
