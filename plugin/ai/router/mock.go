package router

import (
	"context"
	"strings"
	"sync"

	"github.com/hrygo/macagent/plugin/ai/agent"
)

// MockRouterService is a mock implementation of RouterService for testing.
type MockRouterService struct {
	mu sync.Mutex
	// IntentOverrides allows tests to override intent classification results.
	IntentOverrides map[string]Intent
	// Panic, when non-nil, makes Classify panic with this value.
	Panic any
	calls []string
}

var _ RouterService = (*MockRouterService)(nil)

// NewMockRouterService creates a new MockRouterService.
func NewMockRouterService() *MockRouterService {
	return &MockRouterService{IntentOverrides: make(map[string]Intent)}
}

// Classify returns the override for utterance, or a keyword guess.
func (m *MockRouterService) Classify(_ context.Context, utterance string, _ agent.MemorySource) *UserIntent {
	m.mu.Lock()
	m.calls = append(m.calls, utterance)
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}
	if intent, ok := m.IntentOverrides[utterance]; ok {
		return &UserIntent{IntentType: intent, Reasoning: "override"}
	}

	lower := strings.ToLower(utterance)
	for _, keyword := range []string{"일정", "캘린더", "calendar", "schedule", "event", "add "} {
		if strings.Contains(lower, keyword) {
			return &UserIntent{IntentType: IntentCalendar, Reasoning: "keyword: " + keyword}
		}
	}
	return &UserIntent{IntentType: IntentGeneral, Reasoning: "no calendar keyword"}
}

// Calls returns the utterances classified so far.
func (m *MockRouterService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
