package agent

import (
	"time"

	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/calendar"
)

// Factory builds differently configured agents sharing one model client.
// Factory 构建共享同一模型客户端的不同 Agent。
type Factory struct {
	llm      ai.LLMService
	calendar calendar.Capability
	now      func() time.Time
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFactoryClock replaces the clock used to date the calendar prompt.
func WithFactoryClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.now = now }
}

// NewFactory creates a factory. cal backs the calendar agent's tools.
func NewFactory(llm ai.LLMService, cal calendar.Capability, opts ...FactoryOption) *Factory {
	f := &Factory{
		llm:      llm,
		calendar: cal,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build returns an agent with the given prompt and capabilities.
func (f *Factory) Build(name, systemPrompt string, caps Capabilities) *Agent {
	toolMap := make(map[string]Tool, len(caps.Tools))
	for _, tool := range caps.Tools {
		toolMap[tool.Name()] = tool
	}
	return &Agent{
		name:         name,
		systemPrompt: systemPrompt,
		llm:          f.llm,
		caps:         caps,
		toolMap:      toolMap,
	}
}

// IntentClassifier builds the classification agent answering with output.
func (f *Factory) IntentClassifier(output *ai.ResponseSchema, memory MemorySource) *Agent {
	return f.Build(NameIntentClassifier, IntentClassifierPrompt, Capabilities{
		Output: output,
		Memory: memory,
	})
}

// CalendarAgent builds the tool-augmented calendar agent.
func (f *Factory) CalendarAgent(memory MemorySource) *Agent {
	return f.Build(NameCalendarAgent, CalendarAgentPrompt(f.now()), Capabilities{
		Tools:  CalendarTools(f.calendar),
		Memory: memory,
	})
}

// GeneralAgent builds the plain conversational agent.
func (f *Factory) GeneralAgent(memory MemorySource) *Agent {
	return f.Build(NameGeneralAgent, GeneralAgentPrompt, Capabilities{
		Memory: memory,
	})
}
