package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/macagent/plugin/ai/timeout"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var (
	// ErrEmptyResponse is returned when the provider answers without choices.
	ErrEmptyResponse = errors.New("empty response")
	// ErrLLMClosed is returned by calls made after Close.
	ErrLLMClosed = errors.New("llm service is closed")
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant, tool
	Content string
	// ToolCalls are the tool invocations requested by an assistant message.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// ToolDescriptor advertises a callable tool to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  *JSONSchema
}

// ChatResponse is a model turn: text, tool calls, or both.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ResponseSchema names the JSON schema a structured answer must follow.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      *JSONSchema
}

// LLMService is the LLM service interface.
type LLMService interface {
	// Chat performs synchronous chat.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatWithTools lets the model answer or request tool calls.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error)

	// ChatStructured asks for a JSON answer conforming to schema and returns it raw.
	ChatStructured(ctx context.Context, messages []Message, schema *ResponseSchema) (string, error)

	// Close releases the underlying connections. Later calls fail with ErrLLMClosed.
	Close() error
}

type llmService struct {
	client     *openai.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        *LLMConfig
	closed     atomic.Bool
}

// NewLLMService creates a new LLMService.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	switch cfg.Provider {
	case "openai", "deepseek", "ollama":
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	callTimeout := cfg.Timeout
	if callTimeout <= 0 {
		callTimeout = timeout.LLMCallTimeout
	}
	httpClient := &http.Client{Timeout: callTimeout}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = httpClient

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &llmService{
		client:     openai.NewClientWithConfig(clientConfig),
		httpClient: httpClient,
		limiter:    limiter,
		cfg:        cfg,
	}, nil
}

func (s *llmService) Chat(ctx context.Context, messages []Message) (string, error) {
	msg, err := s.complete(ctx, s.newRequest(messages))
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (s *llmService) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error) {
	req := s.newRequest(messages)
	req.Tools = convertTools(tools)

	msg, err := s.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

func (s *llmService) ChatStructured(ctx context.Context, messages []Message, schema *ResponseSchema) (string, error) {
	req := s.newRequest(messages)
	if schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        schema.Name,
				Description: schema.Description,
				Schema:      schema.Schema,
				Strict:      true,
			},
		}
	}

	msg, err := s.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

func (s *llmService) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *llmService) newRequest(messages []Message) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    convertMessages(messages),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
}

// complete sends one chat completion, throttled and retried.
func (s *llmService) complete(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionMessage, error) {
	if s.closed.Load() {
		return nil, ErrLLMClosed
	}

	var result *openai.ChatCompletionMessage
	err := s.doWithRetry(ctx, func() error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}
		result = &resp.Choices[0].Message
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete chat: %w", err)
	}
	return result, nil
}

// doWithRetry executes fn with exponential backoff, retrying only transient failures.
func (s *llmService) doWithRetry(ctx context.Context, fn func() error) error {
	attempts := s.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == attempts-1 {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * timeout.RetryBaseDelay
		slog.Debug("LLM request failed, retrying",
			"attempt", attempt+1,
			"wait_time", waitTime,
			"error", err)
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// isRetryable reports whether err is worth another attempt: rate limiting,
// server errors and empty answers are, client errors and cancellation are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		llmMessages[i] = msg
	}
	return llmMessages
}

func convertTools(tools []ToolDescriptor) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Helper for creating system prompts
func SystemPrompt(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Helper for creating user messages
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Helper for creating assistant messages
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage answers the tool call identified by callID.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// FormatMessages formats messages for prompt templates.
func FormatMessages(systemPrompt string, userContent string, history []Message) []Message {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, SystemPrompt(systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, UserMessage(userContent))
	return messages
}
