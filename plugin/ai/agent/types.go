package agent

import (
	"encoding/json"
	"strings"

	"github.com/hrygo/macagent/plugin/ai"
)

// SourceUser attributes the task message of an exchange.
const SourceUser = "user"

// Agent names.
const (
	NameIntentClassifier = "intent_classifier"
	NameCalendarAgent    = "calendar_agent"
	NameGeneralAgent     = "general_agent"
)

// StopReason explains why a bounded exchange ended.
type StopReason string

const (
	// StopAnswered means the agent replied without requesting tools.
	StopAnswered StopReason = "answered"
	// StopMaxMessages means the message budget ran out.
	StopMaxMessages StopReason = "max_messages"
)

// ExchangeMessage is one message of a bounded exchange.
// ExchangeMessage 是一次有界交换中的一条消息。
type ExchangeMessage struct {
	// Source is SourceUser for the task or the name of the agent.
	Source  string
	Content string
	// Structured holds the agent's answer when it was asked for a JSON
	// object and produced a valid one.
	Structured json.RawMessage
	// ToolCalls are the tool invocations summarized by Content.
	ToolCalls []ai.ToolCall
}

// Transcript records every message of a bounded exchange in order.
type Transcript struct {
	Messages   []ExchangeMessage
	StopReason StopReason
}

// LastFrom returns the trimmed content of the last non-empty message
// attributed to source.
func (t *Transcript) LastFrom(source string) (string, bool) {
	if t == nil {
		return "", false
	}
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.Source != source {
			continue
		}
		if content := strings.TrimSpace(m.Content); content != "" {
			return content, true
		}
	}
	return "", false
}

// LastStructured returns the last structured answer in the transcript.
func (t *Transcript) LastStructured() (json.RawMessage, bool) {
	if t == nil {
		return nil, false
	}
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if raw := t.Messages[i].Structured; len(raw) > 0 {
			return raw, true
		}
	}
	return nil, false
}

// MemorySource supplies the recent conversation entries replayed to an agent.
// *memory.Handle satisfies it.
type MemorySource interface {
	Recent(limit int) []string
}

// Capabilities describes what a built agent can do.
// Capabilities 描述构建出的 Agent 具备的能力。
type Capabilities struct {
	// Tools the agent may call; none for a plain conversational agent.
	Tools []Tool
	// Output, when set, makes the agent answer with a JSON object matching it.
	Output *ai.ResponseSchema
	// Memory is replayed into the model context before the task.
	Memory MemorySource
}
