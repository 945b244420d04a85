package ai

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by ScriptedLLM when no step is left.
var ErrScriptExhausted = errors.New("scripted llm: no more steps")

// Call kinds recorded by ScriptedLLM.
const (
	CallChat       = "chat"
	CallTools      = "tools"
	CallStructured = "structured"
)

// ScriptStep is one canned model turn.
type ScriptStep struct {
	Content   string
	ToolCalls []ToolCall
	Err       error
	// Panic, when non-nil, makes the call panic with this value.
	Panic any
}

// ScriptedCall records one request made to ScriptedLLM.
type ScriptedCall struct {
	Kind     string
	Messages []Message
	Tools    []ToolDescriptor
	Schema   *ResponseSchema
}

// ScriptedLLM is an LLMService that replays steps in order, for tests.
type ScriptedLLM struct {
	mu     sync.Mutex
	steps  []ScriptStep
	calls  []ScriptedCall
	closed bool
}

var _ LLMService = (*ScriptedLLM)(nil)

// NewScriptedLLM creates a ScriptedLLM that answers with steps in order.
func NewScriptedLLM(steps ...ScriptStep) *ScriptedLLM {
	return &ScriptedLLM{steps: steps}
}

// Push appends steps to the script.
func (m *ScriptedLLM) Push(steps ...ScriptStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Calls returns a copy of the recorded calls.
func (m *ScriptedLLM) Calls() []ScriptedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ScriptedCall(nil), m.calls...)
}

// Remaining returns the number of unconsumed steps.
func (m *ScriptedLLM) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Closed reports whether Close was called.
func (m *ScriptedLLM) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *ScriptedLLM) next(ctx context.Context, call ScriptedCall) (ScriptStep, error) {
	if err := ctx.Err(); err != nil {
		return ScriptStep{}, err
	}
	m.mu.Lock()
	call.Messages = append([]Message(nil), call.Messages...)
	m.calls = append(m.calls, call)
	if m.closed {
		m.mu.Unlock()
		return ScriptStep{}, ErrLLMClosed
	}
	if len(m.steps) == 0 {
		m.mu.Unlock()
		return ScriptStep{}, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	m.mu.Unlock()

	if step.Panic != nil {
		panic(step.Panic)
	}
	return step, step.Err
}

func (m *ScriptedLLM) Chat(ctx context.Context, messages []Message) (string, error) {
	step, err := m.next(ctx, ScriptedCall{Kind: CallChat, Messages: messages})
	if err != nil {
		return "", err
	}
	return step.Content, nil
}

func (m *ScriptedLLM) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error) {
	step, err := m.next(ctx, ScriptedCall{Kind: CallTools, Messages: messages, Tools: tools})
	if err != nil {
		return nil, err
	}
	return &ChatResponse{Content: step.Content, ToolCalls: step.ToolCalls}, nil
}

func (m *ScriptedLLM) ChatStructured(ctx context.Context, messages []Message, schema *ResponseSchema) (string, error) {
	step, err := m.next(ctx, ScriptedCall{Kind: CallStructured, Messages: messages, Schema: schema})
	if err != nil {
		return "", err
	}
	return step.Content, nil
}

func (m *ScriptedLLM) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
