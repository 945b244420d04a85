package session

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// Strategy names how a stable user id is derived from the process context.
type Strategy string

const (
	StrategyTerminalPID Strategy = "terminal_pid"
	StrategySystemUser  Strategy = "system_user"
	StrategyCustom      Strategy = "custom"
	StrategyDirectory   Strategy = "directory"
	// StrategyRecent derives its user id like terminal_pid, then falls back to
	// the most recently active session instead of creating one.
	StrategyRecent  Strategy = "recent"
	StrategyDefault Strategy = "default"
)

// Fallback user ids used when the process context cannot be read.
const (
	customFallbackUserID = "custom_user"
	unknownTerminal      = "unknown_terminal"
	unknownUser          = "unknown_user"
	unknownDirectory     = "dir_unknown"
)

// Strategies lists the strategy names accepted on the command line.
var Strategies = []Strategy{
	StrategyTerminalPID,
	StrategySystemUser,
	StrategyCustom,
	StrategyDirectory,
	StrategyRecent,
	StrategyDefault,
}

// Environment exposes the process context the strategies read.
type Environment interface {
	ParentPID() int
	Username() (string, error)
	WorkingDir() (string, error)
}

type osEnvironment struct{}

// OSEnvironment reads the real process context.
func OSEnvironment() Environment {
	return osEnvironment{}
}

func (osEnvironment) ParentPID() int {
	return os.Getppid()
}

func (osEnvironment) Username() (string, error) {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}
	for _, key := range []string{"USER", "LOGNAME", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name, nil
		}
	}
	return "", os.ErrNotExist
}

func (osEnvironment) WorkingDir() (string, error) {
	return os.Getwd()
}

// ParseStrategy maps a name to a Strategy. Unknown names map to
// StrategyDefault, which behaves like terminal_pid.
func ParseStrategy(name string) Strategy {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Strategies {
		if s == known {
			return s
		}
	}
	return StrategyDefault
}

// DeriveUserID computes the user id for strategy. customUserID is only read
// by the custom strategy.
func DeriveUserID(strategy Strategy, customUserID string, env Environment) string {
	switch strategy {
	case StrategySystemUser:
		name, err := env.Username()
		if err != nil || name == "" {
			return unknownUser
		}
		return name
	case StrategyCustom:
		if customUserID == "" {
			return customFallbackUserID
		}
		return customUserID
	case StrategyDirectory:
		wd, err := env.WorkingDir()
		if err != nil || wd == "" {
			return unknownDirectory
		}
		return "dir_" + filepath.Base(wd)
	default:
		ppid := env.ParentPID()
		if ppid <= 0 {
			return unknownTerminal
		}
		return "terminal_" + strconv.Itoa(ppid)
	}
}
