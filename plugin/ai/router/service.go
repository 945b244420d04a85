package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/macagent/plugin/ai/agent"
	"github.com/hrygo/macagent/plugin/ai/timeout"
)

// Service classifies intents with a structured single-turn exchange.
type Service struct {
	factory *agent.Factory
}

var _ RouterService = (*Service)(nil)

// NewService creates a new router service.
func NewService(factory *agent.Factory) *Service {
	return &Service{factory: factory}
}

// Classify classifies user intent from input text. The exchange is capped at
// IntentMaxMessages: the utterance and the classifier's answer.
func (s *Service) Classify(ctx context.Context, utterance string, memory agent.MemorySource) (intent *UserIntent) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			intent = fallback(fmt.Errorf("panic: %v", r))
		}
		slog.Debug("intent classified",
			"input", truncate(utterance, 50),
			"intent", intent.IntentType,
			"reasoning", intent.Reasoning,
			"latency_ms", time.Since(start).Milliseconds())
	}()

	classifier := s.factory.IntentClassifier(UserIntentSchema, memory)
	transcript, err := classifier.Run(ctx, utterance, timeout.IntentMaxMessages)
	if err != nil {
		slog.Warn("intent classification failed", "error", err)
		return fallback(err)
	}

	raw, ok := transcript.LastStructured()
	if !ok {
		return &UserIntent{IntentType: IntentGeneral, Reasoning: ReasonNoStructuredResult}
	}
	var result UserIntent
	if err := json.Unmarshal(raw, &result); err != nil || !result.IntentType.Valid() {
		slog.Debug("classifier answer is not a valid intent", "answer", truncate(string(raw), 200))
		return &UserIntent{IntentType: IntentGeneral, Reasoning: ReasonNoStructuredResult}
	}
	return &result
}

func fallback(err error) *UserIntent {
	return &UserIntent{
		IntentType: IntentGeneral,
		Reasoning:  reasonErrorPrefix + err.Error(),
	}
}

// truncate truncates a string to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
