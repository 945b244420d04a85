package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/ai/timeout"
)

// Agent is a single model-backed participant. It runs bounded exchanges:
// the task counts as one message and every agent turn as another.
// Agent 是单个由模型驱动的参与者，运行有界交换。
type Agent struct {
	name         string
	systemPrompt string
	llm          ai.LLMService
	caps         Capabilities
	toolMap      map[string]Tool
}

// Name returns the agent name messages are attributed to.
func (a *Agent) Name() string {
	return a.name
}

// Run executes one bounded exchange for task, ending when the agent answers
// without tools or when maxMessages messages have been exchanged. The
// transcript so far is returned together with any error.
func (a *Agent) Run(ctx context.Context, task string, maxMessages int) (*Transcript, error) {
	if maxMessages < 2 {
		return nil, ErrInvalidBudget
	}
	ctx, cancel := context.WithTimeout(ctx, timeout.AgentTimeout)
	defer cancel()

	transcript := &Transcript{
		Messages:   []ExchangeMessage{{Source: SourceUser, Content: task}},
		StopReason: StopMaxMessages,
	}
	messages := a.buildContext(task)
	start := time.Now()

	for turn := 1; len(transcript.Messages) < maxMessages; turn++ {
		reply, followUp, done, err := a.step(ctx, messages)
		if err != nil {
			return transcript, fmt.Errorf("%s turn %d: %w", a.name, turn, err)
		}
		transcript.Messages = append(transcript.Messages, reply)
		if done {
			transcript.StopReason = StopAnswered
			break
		}
		messages = append(messages, followUp...)
	}

	slog.Debug("agent exchange finished",
		"agent", a.name,
		"messages", len(transcript.Messages),
		"stop_reason", transcript.StopReason,
		"duration_ms", time.Since(start).Milliseconds())
	return transcript, nil
}

// buildContext assembles the system prompt, the replayed memory and the task.
func (a *Agent) buildContext(task string) []ai.Message {
	messages := []ai.Message{ai.SystemPrompt(a.systemPrompt)}
	if a.caps.Memory != nil {
		if entries := a.caps.Memory.Recent(timeout.MemoryWindow); len(entries) > 0 {
			messages = append(messages, ai.SystemPrompt(formatMemory(entries)))
		}
	}
	return append(messages, ai.UserMessage(task))
}

// formatMemory renders memory entries oldest first.
func formatMemory(entries []string) string {
	var sb strings.Builder
	sb.WriteString("Relevant memory content (in chronological order):\n")
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, entry)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// step performs one agent turn. It returns the message attributed to the
// agent, the model messages to append before the next turn, and whether
// the agent is done.
func (a *Agent) step(ctx context.Context, messages []ai.Message) (ExchangeMessage, []ai.Message, bool, error) {
	reply := ExchangeMessage{Source: a.name}

	switch {
	case a.caps.Output != nil:
		raw, err := a.llm.ChatStructured(ctx, messages, a.caps.Output)
		if err != nil {
			return reply, nil, false, err
		}
		reply.Content = raw
		if json.Valid([]byte(raw)) && strings.HasPrefix(strings.TrimSpace(raw), "{") {
			reply.Structured = json.RawMessage(raw)
		}
		return reply, nil, true, nil

	case len(a.caps.Tools) > 0:
		resp, err := a.llm.ChatWithTools(ctx, messages, a.toolDescriptors())
		if err != nil {
			return reply, nil, false, err
		}
		if len(resp.ToolCalls) == 0 {
			reply.Content = resp.Content
			return reply, nil, true, nil
		}

		followUp := []ai.Message{{Role: ai.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}}
		outputs := make([]string, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			result := a.executeTool(ctx, tc)
			outputs = append(outputs, result.Output)
			followUp = append(followUp, ai.ToolMessage(tc.ID, result.Output))
		}
		reply.Content = strings.Join(outputs, "\n")
		reply.ToolCalls = resp.ToolCalls
		return reply, followUp, false, nil

	default:
		content, err := a.llm.Chat(ctx, messages)
		if err != nil {
			return reply, nil, false, err
		}
		reply.Content = content
		return reply, nil, true, nil
	}
}

// executeTool finds and runs a tool. Failures are reported to the model as
// the tool output so it can react to them.
func (a *Agent) executeTool(ctx context.Context, tc ai.ToolCall) *ToolResult {
	start := time.Now()
	tool, ok := a.toolMap[tc.Name]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrToolNotFound, tc.Name)
		slog.Warn("model requested unknown tool", "agent", a.name, "tool", tc.Name)
		return NewToolResult(tc.Name, tc.Arguments, "", time.Since(start), err)
	}

	output, err := tool.Run(ctx, tc.Arguments)
	result := NewToolResult(tc.Name, tc.Arguments, output, time.Since(start), err)
	slog.Debug("tool executed",
		"agent", a.name,
		"tool", tc.Name,
		"input", truncateString(tc.Arguments, timeout.MaxTruncateLength),
		"success", result.Success,
		"duration_ms", result.Duration.Milliseconds())
	return result
}

// toolDescriptors converts the agent's tools to ai.ToolDescriptor format.
func (a *Agent) toolDescriptors() []ai.ToolDescriptor {
	descriptors := make([]ai.ToolDescriptor, len(a.caps.Tools))
	for i, tool := range a.caps.Tools {
		descriptors[i] = ai.ToolDescriptor{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		}
	}
	return descriptors
}

// truncateString truncates a string to a maximum length for logging.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
