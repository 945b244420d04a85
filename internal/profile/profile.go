package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DriverFile stores one JSON document per session.
	DriverFile = "file"
	// DriverSQLite stores sessions in a single SQLite database.
	DriverSQLite = "sqlite"

	// placeholderAPIKey is the value shipped in the sample .env file.
	placeholderAPIKey = "your_openai_api_key_here"
)

// Profile is the configuration used to start the calendar assistant.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Data is the base data directory (default: ~/.mac_agent).
	Data string
	// Driver is the session storage driver (file or sqlite).
	Driver string
	// DSN is the sqlite database path, only used by the sqlite driver.
	DSN string
	// SessionDir is the directory holding per-session JSON records.
	SessionDir string
	// Version is the current version of the binary.
	Version string

	// Calendar configuration
	CalendarName    string // MAC_AGENT_CALENDAR (default: 캘린더)
	CalendarBackend string // MAC_AGENT_CALENDAR_BACKEND (default: applescript)
	Timezone        string // MAC_AGENT_TIMEZONE (default: Asia/Seoul)

	// SessionStrategy is the default session naming strategy.
	SessionStrategy string

	// LLM configuration
	LLMProvider          string  // MAC_AGENT_LLM_PROVIDER (default: openai)
	LLMModel             string  // MAC_AGENT_LLM_MODEL (default: gpt-4o-mini)
	LLMAPIKey            string  // MAC_AGENT_LLM_API_KEY (legacy: OPENAI_API_KEY)
	LLMBaseURL           string  // MAC_AGENT_LLM_BASE_URL
	LLMTemperature       float32 // MAC_AGENT_LLM_TEMPERATURE (default: 0.1)
	LLMMaxTokens         int     // MAC_AGENT_LLM_MAX_TOKENS (default: 1024)
	LLMRequestsPerSecond float64 // MAC_AGENT_LLM_RPS (default: 2)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// NeedsAPIKey reports whether the configured provider authenticates with a key.
func (p *Profile) NeedsAPIKey() bool {
	return p.LLMProvider != "ollama"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads the LLM configuration from environment variables.
// MAC_AGENT_* wins over the legacy OPENAI_API_KEY variable.
func (p *Profile) FromEnv() {
	getEnvWithFallback := func(newKey, legacyKey string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		return os.Getenv(legacyKey)
	}

	p.LLMProvider = getEnvOrDefault("MAC_AGENT_LLM_PROVIDER", "openai")
	p.LLMModel = getEnvOrDefault("MAC_AGENT_LLM_MODEL", "gpt-4o-mini")
	p.LLMAPIKey = getEnvWithFallback("MAC_AGENT_LLM_API_KEY", "OPENAI_API_KEY")
	p.LLMBaseURL = os.Getenv("MAC_AGENT_LLM_BASE_URL")

	p.LLMTemperature = 0.1
	if raw := os.Getenv("MAC_AGENT_LLM_TEMPERATURE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 32); err == nil {
			p.LLMTemperature = float32(v)
		} else {
			slog.Warn("ignoring invalid MAC_AGENT_LLM_TEMPERATURE", "value", raw)
		}
	}

	p.LLMMaxTokens = 1024
	if raw := os.Getenv("MAC_AGENT_LLM_MAX_TOKENS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.LLMMaxTokens = v
		} else {
			slog.Warn("ignoring invalid MAC_AGENT_LLM_MAX_TOKENS", "value", raw)
		}
	}

	p.LLMRequestsPerSecond = 2
	if raw := os.Getenv("MAC_AGENT_LLM_RPS"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			p.LLMRequestsPerSecond = v
		} else {
			slog.Warn("ignoring invalid MAC_AGENT_LLM_RPS", "value", raw)
		}
	}
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve home directory")
	}
	return filepath.Join(home, ".mac_agent"), nil
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate fills defaults and prepares the data directory. It does not check
// the LLM credentials; call ValidateLLM before building the model client.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "prod"
	}

	if p.Data == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return err
		}
		p.Data = dir
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	switch p.Driver {
	case "":
		p.Driver = DriverFile
	case DriverFile, DriverSQLite:
	default:
		return errors.Errorf("unsupported storage driver: %s", p.Driver)
	}

	if p.SessionDir == "" {
		p.SessionDir = filepath.Join(dataDir, "sessions")
	}
	if p.Driver == DriverSQLite && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, "sessions.db")
	}

	if p.CalendarName == "" {
		p.CalendarName = "캘린더"
	}
	if p.CalendarBackend == "" {
		p.CalendarBackend = "applescript"
	}
	if p.Timezone == "" {
		p.Timezone = "Asia/Seoul"
	}
	if p.SessionStrategy == "" {
		p.SessionStrategy = "terminal_pid"
	}

	return nil
}

// ValidateLLM checks that the model provider can be reached with the
// configured credentials.
func (p *Profile) ValidateLLM() error {
	if p.LLMProvider == "" {
		return errors.New("LLM provider is required")
	}
	if p.NeedsAPIKey() && (p.LLMAPIKey == "" || p.LLMAPIKey == placeholderAPIKey) {
		return errors.Errorf("LLM API key is not set: put OPENAI_API_KEY=<key> in %s or export MAC_AGENT_LLM_API_KEY",
			filepath.Join(p.Data, ".env"))
	}
	return nil
}
