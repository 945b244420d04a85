// Package assistant coordinates one natural-language request end to end:
// it resolves the session, hydrates its memory, classifies the utterance,
// dispatches to the calendar or general flow and persists the turn.
//
// Key features:
//   - Bounded model exchanges per flow (see timeout.*MaxMessages)
//   - Error containment: every failure becomes a phase-prefixed reply
//   - Best-effort persistence of session metadata with the memory snapshot
//
// The service is also the facade used by the CLI for session administration.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/ai/agent"
	"github.com/hrygo/macagent/plugin/ai/memory"
	"github.com/hrygo/macagent/plugin/ai/router"
	"github.com/hrygo/macagent/plugin/ai/session"
	"github.com/hrygo/macagent/plugin/ai/timeout"
	"github.com/hrygo/macagent/server/internal/observability"
	"github.com/hrygo/macagent/store"
)

// Fallback replies used when a flow ends without a message from its agent.
const (
	CalendarFallback = "캘린더 작업을 완료했지만 결과를 가져올 수 없습니다."
	GeneralFallback  = "안녕하세요! Mac Agent입니다. 캘린더 관리를 도와드릴게요."
)

// Phase names the step of a request that failed.
type Phase string

const (
	PhaseClassification Phase = "classification"
	PhaseCalendar       Phase = "calendar"
	PhaseGeneral        Phase = "general"
)

// PhaseError is a failure contained by the orchestrator. Its message is
// what the user sees.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Reply is the outcome of one Handle call.
type Reply struct {
	SessionID string
	Text      string
	Intent    router.Intent
	// Failed is set when Text is a phase-prefixed error message.
	Failed bool
}

// Saver persists session metadata together with its memory snapshot.
// *store.Store satisfies it.
type Saver interface {
	SaveSession(ctx context.Context, session *store.Session, memory []string) error
}

// Config holds the collaborators of a Service.
type Config struct {
	Registry *session.Registry
	Memory   *memory.Service
	Saver    Saver
	Router   router.RouterService
	Factory  *agent.Factory
	// LLM is released by Close. Optional.
	LLM ai.LLMService

	// Strategy resolves a session when the caller passes none or an unknown id.
	Strategy     session.Strategy
	CustomUserID string
}

// Service is the request orchestrator.
type Service struct {
	registry *session.Registry
	memory   *memory.Service
	saver    Saver
	router   router.RouterService
	factory  *agent.Factory
	llm      ai.LLMService

	strategy     session.Strategy
	customUserID string
}

// NewService creates an orchestrator from cfg.
func NewService(cfg Config) *Service {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = session.StrategyDefault
	}
	return &Service{
		registry:     cfg.Registry,
		memory:       cfg.Memory,
		saver:        cfg.Saver,
		router:       cfg.Router,
		factory:      cfg.Factory,
		llm:          cfg.LLM,
		strategy:     strategy,
		customUserID: cfg.CustomUserID,
	}
}

// Handle processes one utterance in the given session and returns the reply.
// It never fails: errors are returned as phase-prefixed reply text and
// recorded in memory with the system role.
func (s *Service) Handle(ctx context.Context, utterance, sessionID string) *Reply {
	sessionID = s.resolveSession(ctx, sessionID)
	reqCtx := observability.NewRequestContext(nil, sessionID)
	ctx = observability.WithRequestContext(ctx, reqCtx)
	logger := reqCtx.Logger

	mem := s.memory.GetOrCreate(ctx, sessionID)
	s.memory.RestorePending(sessionID)
	mem.Append(utterance, memory.RoleUser)

	reply := &Reply{SessionID: sessionID}
	text, intent, err := s.respond(ctx, utterance, mem)
	reply.Intent = intent
	if err != nil {
		logger.Warn("request failed", "error", err)
		reply.Text = err.Error()
		reply.Failed = true
		mem.Append(reply.Text, memory.RoleSystem)
	} else {
		reply.Text = text
		mem.Append(reply.Text, memory.RoleAssistant)
	}

	s.persist(ctx, sessionID)

	logger.Debug("request handled",
		observability.LogFieldIntent, intent,
		observability.LogFieldMessageLen, len(utterance),
		observability.LogFieldDuration, reqCtx.DurationMs(),
		"failed", reply.Failed)
	return reply
}

func (s *Service) resolveSession(ctx context.Context, sessionID string) string {
	if sessionID != "" && s.registry.GetSession(sessionID) != nil {
		return sessionID
	}
	if sessionID != "" {
		slog.Debug("unknown session, resolving by strategy",
			"session_id", sessionID,
			"strategy", s.strategy)
	}
	return s.registry.ResolveByStrategy(ctx, s.strategy, s.customUserID)
}

// respond classifies and dispatches. Panics are contained and attributed to
// the phase that was running.
func (s *Service) respond(ctx context.Context, utterance string, mem agent.MemorySource) (text string, intent router.Intent, err error) {
	phase := PhaseClassification
	defer func() {
		if r := recover(); r != nil {
			observability.Logger(ctx).Error("recovered from panic", "phase", phase, "panic", r)
			err = &PhaseError{Phase: phase, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	classified := s.router.Classify(ctx, utterance, mem)
	intent = classified.IntentType
	observability.Logger(ctx).Debug("dispatching",
		observability.LogFieldIntent, intent,
		"reasoning", classified.Reasoning)

	switch intent {
	case router.IntentCalendar:
		phase = PhaseCalendar
		text, err = runFlow(ctx, s.factory.CalendarAgent(mem), utterance,
			timeout.CalendarMaxMessages, agent.NameCalendarAgent, CalendarFallback)
	default:
		intent = router.IntentGeneral
		phase = PhaseGeneral
		text, err = runFlow(ctx, s.factory.GeneralAgent(mem), utterance,
			timeout.GeneralMaxMessages, agent.NameGeneralAgent, GeneralFallback)
	}
	if err != nil {
		return "", intent, &PhaseError{Phase: phase, Err: err}
	}
	return text, intent, nil
}

func runFlow(ctx context.Context, a *agent.Agent, task string, maxMessages int, source, fallback string) (string, error) {
	transcript, err := a.Run(ctx, task, maxMessages)
	if err != nil {
		return "", err
	}
	if reply, ok := transcript.LastFrom(source); ok {
		return reply, nil
	}
	observability.Logger(ctx).Debug("no reply from agent, using fallback",
		"agent", source,
		"stop_reason", transcript.StopReason)
	return fallback, nil
}

// persist bumps the session activity and saves it with the full memory
// snapshot in one call. Failures are logged; the in-memory turn stands.
func (s *Service) persist(ctx context.Context, sessionID string) {
	logger := observability.Logger(ctx)
	updated := s.registry.UpdateActivity(sessionID)
	if updated == nil {
		logger.Warn("session vanished before persist")
		return
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("request cancelled, session not persisted", "error", err)
		return
	}
	if err := s.saver.SaveSession(ctx, updated, s.memory.Snapshot(sessionID)); err != nil {
		logger.Warn("failed to persist session", "error", err)
	}
}

// ListSessions returns the summaries of every known session.
func (s *Service) ListSessions() []*store.SessionSummary {
	return s.registry.ListSessions()
}

// SessionInfo returns the summary of one session.
func (s *Service) SessionInfo(sessionID string) (*store.SessionSummary, error) {
	return s.registry.Info(sessionID)
}

// NewSession starts a fresh session for userID.
func (s *Service) NewSession(ctx context.Context, userID string) string {
	return s.registry.CreateSession(ctx, userID)
}

// ResolveSession returns the session selected by the configured strategy.
func (s *Service) ResolveSession(ctx context.Context) string {
	return s.registry.ResolveByStrategy(ctx, s.strategy, s.customUserID)
}

// DeleteSession removes the session from the registry, storage and memory.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	s.memory.Delete(sessionID)
	return s.registry.DeleteSession(ctx, sessionID)
}

// History returns at most limit of the latest memory entries of a session,
// reading them from storage first when the session is not loaded yet.
// A non-positive limit selects timeout.HistoryDefaultLimit.
func (s *Service) History(ctx context.Context, sessionID string, limit int) []string {
	if limit <= 0 {
		limit = timeout.HistoryDefaultLimit
	}
	s.memory.GetOrCreate(ctx, sessionID)
	s.memory.RestorePending(sessionID)
	return s.memory.History(sessionID, limit)
}

// Close releases the model client.
func (s *Service) Close() error {
	if s.llm == nil {
		return nil
	}
	return s.llm.Close()
}
