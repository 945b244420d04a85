package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/plugin/ai/timeout"
)

// TestNewLLMService tests service creation.
func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LLMConfig
		expectError bool
	}{
		{"OpenAI config", &LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "test-key"}, false},
		{"DeepSeek config", &LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "test-key", BaseURL: deepSeekBaseURL}, false},
		{"Ollama config", &LLMConfig{Provider: "ollama", Model: "llama3", BaseURL: ollamaBaseURL}, false},
		{"Unsupported provider", &LLMConfig{Provider: "unsupported"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLLMService(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, svc.Close())
		})
	}
}

type capturedRequest struct {
	Model          string            `json:"model"`
	Messages       []json.RawMessage `json:"messages"`
	Tools          []json.RawMessage `json:"tools"`
	ResponseFormat *struct {
		Type       string `json:"type"`
		JSONSchema *struct {
			Name   string          `json:"name"`
			Strict bool            `json:"strict"`
			Schema json.RawMessage `json:"schema"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

func chatCompletionBody(message map[string]any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": "stop",
		}},
	}
}

func newTestServer(t *testing.T, handler func(req *capturedRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req capturedRequest
		require.NoError(t, json.Unmarshal(body, &req))

		status, resp := handler(&req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, baseURL string) LLMService {
	t.Helper()
	svc, err := NewLLMService(&LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		APIKey:      "test-key",
		BaseURL:     baseURL,
		MaxTokens:   256,
		Temperature: 0.1,
		MaxRetries:  2,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestChat(t *testing.T) {
	srv := newTestServer(t, func(req *capturedRequest) (int, any) {
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Len(t, req.Messages, 2)
		assert.Empty(t, req.Tools)
		return http.StatusOK, chatCompletionBody(map[string]any{"role": "assistant", "content": "안녕하세요"})
	})
	svc := newTestService(t, srv.URL)

	got, err := svc.Chat(context.Background(), FormatMessages("be brief", "hi", nil))
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", got)
}

func TestChatWithTools(t *testing.T) {
	srv := newTestServer(t, func(req *capturedRequest) (int, any) {
		require.Len(t, req.Tools, 1)
		var tool struct {
			Type     string `json:"type"`
			Function struct {
				Name       string          `json:"name"`
				Parameters json.RawMessage `json:"parameters"`
			} `json:"function"`
		}
		require.NoError(t, json.Unmarshal(req.Tools[0], &tool))
		assert.Equal(t, "function", tool.Type)
		assert.Equal(t, "create_event", tool.Function.Name)
		assert.Contains(t, string(tool.Function.Parameters), `"title"`)

		return http.StatusOK, chatCompletionBody(map[string]any{
			"role": "assistant",
			"tool_calls": []map[string]any{{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      "create_event",
					"arguments": `{"title":"dinner"}`,
				},
			}},
		})
	})
	svc := newTestService(t, srv.URL)

	tools := []ToolDescriptor{{
		Name:        "create_event",
		Description: "create",
		Parameters:  Object(map[string]*JSONSchema{"title": String("title")}, "title"),
	}}
	resp, err := svc.ChatWithTools(context.Background(), []Message{UserMessage("add dinner")}, tools)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "create_event", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"title":"dinner"}`, resp.ToolCalls[0].Arguments)
}

func TestChatStructured(t *testing.T) {
	srv := newTestServer(t, func(req *capturedRequest) (int, any) {
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)
		require.NotNil(t, req.ResponseFormat.JSONSchema)
		assert.Equal(t, "user_intent", req.ResponseFormat.JSONSchema.Name)
		assert.True(t, req.ResponseFormat.JSONSchema.Strict)
		assert.Contains(t, string(req.ResponseFormat.JSONSchema.Schema), `"additionalProperties":false`)
		return http.StatusOK, chatCompletionBody(map[string]any{
			"role":    "assistant",
			"content": " {\"intent_type\":\"calendar\"} \n",
		})
	})
	svc := newTestService(t, srv.URL)

	schema := &ResponseSchema{
		Name:   "user_intent",
		Schema: Object(map[string]*JSONSchema{"intent_type": Enum("", "calendar", "general")}, "intent_type"),
	}
	got, err := svc.ChatStructured(context.Background(), []Message{UserMessage("add dinner")}, schema)
	require.NoError(t, err)
	assert.Equal(t, `{"intent_type":"calendar"}`, got)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(req *capturedRequest) (int, any) {
		if calls.Add(1) == 1 {
			return http.StatusInternalServerError, map[string]any{
				"error": map[string]any{"message": "boom", "type": "server_error"},
			}
		}
		return http.StatusOK, chatCompletionBody(map[string]any{"role": "assistant", "content": "ok"})
	})
	svc := newTestService(t, srv.URL)

	got, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(req *capturedRequest) (int, any) {
		calls.Add(1)
		return http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"message": "bad key", "type": "invalid_request_error"},
		}
	})
	svc := newTestService(t, srv.URL)

	_, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCallsAfterClose(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:0")
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	_, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
	assert.ErrorIs(t, err, ErrLLMClosed)
}

// TestMessageHelpers tests helper functions.
func TestMessageHelpers(t *testing.T) {
	assert.Equal(t, RoleSystem, SystemPrompt("System prompt").Role)
	assert.Equal(t, RoleUser, UserMessage("User message").Role)
	assert.Equal(t, RoleAssistant, AssistantMessage("Assistant message").Role)

	tool := ToolMessage("call_1", "done")
	assert.Equal(t, RoleTool, tool.Role)
	assert.Equal(t, "call_1", tool.ToolCallID)
}

// TestFormatMessages tests message formatting.
func TestFormatMessages(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "Previous message"},
		{Role: "assistant", Content: "Previous response"},
	}

	messages := FormatMessages("System prompt", "Current message", history)

	require.Len(t, messages, 4)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, RoleUser, messages[3].Role)
	assert.Equal(t, "Current message", messages[3].Content)
}

func TestConvertMessagesKeepsToolCalls(t *testing.T) {
	converted := convertMessages([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "get_events", Arguments: "{}"}}},
		ToolMessage("c1", "[]"),
	})
	require.Len(t, converted, 2)
	require.Len(t, converted[0].ToolCalls, 1)
	assert.Equal(t, "get_events", converted[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "c1", converted[1].ToolCallID)
}

func TestLLMConfigValidate(t *testing.T) {
	assert.NoError(t, (&LLMConfig{Provider: "ollama", Model: "llama3"}).Validate())
	assert.Error(t, (&LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}).Validate())
	assert.Error(t, (&LLMConfig{Provider: "anthropic", Model: "x", APIKey: "k"}).Validate())
}

func TestNewLLMConfigFromProfile(t *testing.T) {
	cfg := NewLLMConfigFromProfile(&profile.Profile{
		LLMProvider:    "deepseek",
		LLMModel:       "deepseek-chat",
		LLMAPIKey:      "k",
		LLMTemperature: 0.1,
	})
	assert.Equal(t, deepSeekBaseURL, cfg.BaseURL)
	assert.Equal(t, timeout.MaxRetries, cfg.MaxRetries)
	assert.NoError(t, cfg.Validate())
}
