package ai

import (
	"errors"
	"time"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/plugin/ai/timeout"
)

// Default endpoints for OpenAI-compatible providers.
const (
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	ollamaBaseURL   = "http://localhost:11434/v1"
)

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, ollama
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.1

	// RequestsPerSecond throttles outgoing requests; zero disables throttling.
	RequestsPerSecond float64
	MaxRetries        int
	Timeout           time.Duration
}

// NewLLMConfigFromProfile creates LLM config from profile.
func NewLLMConfigFromProfile(p *profile.Profile) *LLMConfig {
	cfg := &LLMConfig{
		Provider:          p.LLMProvider,
		Model:             p.LLMModel,
		APIKey:            p.LLMAPIKey,
		BaseURL:           p.LLMBaseURL,
		MaxTokens:         p.LLMMaxTokens,
		Temperature:       p.LLMTemperature,
		RequestsPerSecond: p.LLMRequestsPerSecond,
		MaxRetries:        timeout.MaxRetries,
		Timeout:           timeout.LLMCallTimeout,
	}

	if cfg.BaseURL == "" {
		switch cfg.Provider {
		case "deepseek":
			cfg.BaseURL = deepSeekBaseURL
		case "ollama":
			cfg.BaseURL = ollamaBaseURL
		}
	}
	return cfg
}

// Validate validates the configuration.
func (c *LLMConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("LLM provider is required")
	}
	switch c.Provider {
	case "openai", "deepseek", "ollama":
	default:
		return errors.New("unsupported LLM provider: " + c.Provider)
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	if c.Model == "" {
		return errors.New("LLM model is required")
	}
	return nil
}
