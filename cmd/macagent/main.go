package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/ai/agent"
	"github.com/hrygo/macagent/plugin/ai/aitime"
	"github.com/hrygo/macagent/plugin/ai/memory"
	"github.com/hrygo/macagent/plugin/ai/router"
	"github.com/hrygo/macagent/plugin/ai/session"
	"github.com/hrygo/macagent/plugin/calendar"
	"github.com/hrygo/macagent/server/service/assistant"
	"github.com/hrygo/macagent/server/timezone"
	"github.com/hrygo/macagent/store"
	"github.com/hrygo/macagent/store/db"
)

const (
	envPrefix = "MAC_AGENT"
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "macagent",
	Short: "Mac Agent - 자연어 캘린더 관리 시스템",
	Example: `  macagent -c "5월 17일 일정등록해줘 저녁식사"
  macagent -c "내일 일정 보여줘"
  macagent -c "안녕하세요" --session-strategy custom --user-id "김덕배"
  macagent -c "안녕하세요" --session-id abc123
  macagent --session list
  macagent --session info --session-id abc123
  macagent --session delete --session-id abc123
  macagent --interactive`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogger(viper.GetBool("verbose"))
	},
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("command", "c", "", "실행할 명령어 (자연어)")
	flags.String("calendar", calendar.DefaultCalendarName, "사용할 캘린더 이름")
	flags.String("calendar-backend", "applescript", "캘린더 백엔드 (applescript|memory)")
	flags.String("session-id", "", "사용할 세션 ID")
	flags.String("session-strategy", string(session.StrategyTerminalPID),
		"세션 관리 전략 (terminal_pid|system_user|custom|directory|recent|default)")
	flags.String("user-id", "", "사용자 지정 ID (--session-strategy custom과 함께 사용)")
	flags.String("session", "", "세션 관리 명령어 (list|info|delete|history)")
	flags.BoolP("interactive", "i", false, "대화형 모드 실행")
	flags.BoolP("verbose", "v", false, "상세한 로그 출력")
	flags.String("data", "", "데이터 디렉터리 (기본값: ~/.mac_agent)")
	flags.String("driver", profile.DriverFile, "세션 저장소 (file|sqlite)")
	flags.String("timezone", "Asia/Seoul", "날짜 해석에 사용할 시간대")
	flags.String("mode", "prod", "실행 모드 (dev|prod)")

	for _, name := range []string{
		"command", "calendar", "calendar-backend", "session-id", "session-strategy", "user-id",
		"session", "interactive", "verbose", "data", "driver", "timezone", "mode",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setupLogger writes human-readable logs to a terminal and JSON otherwise.
func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	slog.SetDefault(slog.New(handler))
}

func newProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:            viper.GetString("mode"),
		Data:            viper.GetString("data"),
		Driver:          viper.GetString("driver"),
		Version:         version,
		CalendarName:    viper.GetString("calendar"),
		CalendarBackend: viper.GetString("calendar-backend"),
		Timezone:        viper.GetString("timezone"),
		SessionStrategy: viper.GetString("session-strategy"),
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	// Variables already in the environment win over both files.
	for _, path := range []string{".env", filepath.Join(p.Data, ".env")} {
		if err := godotenv.Load(path); err != nil {
			slog.Debug("no env file loaded", "path", path, "error", err)
		}
	}
	p.FromEnv()
	return p, nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newProfile()
	if err != nil {
		return err
	}

	action := viper.GetString("session")
	command := viper.GetString("command")
	interactive := viper.GetBool("interactive")
	if action == "" && command == "" && !interactive {
		return cmd.Help()
	}

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return err
	}
	st := store.New(dbDriver, p)
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}()

	registry, err := session.NewRegistry(ctx, st)
	if err != nil {
		return err
	}
	cfg := assistant.Config{
		Registry:     registry,
		Memory:       memory.NewService(st),
		Saver:        st,
		Strategy:     session.ParseStrategy(p.SessionStrategy),
		CustomUserID: viper.GetString("user-id"),
	}

	out := newPrinter(os.Stdout)

	// Session administration does not talk to the model.
	if action != "" {
		svc := assistant.NewService(cfg)
		return manageSessions(ctx, out, svc, action, viper.GetString("session-id"))
	}

	if err := wireModel(p, &cfg); err != nil {
		return err
	}
	svc := assistant.NewService(cfg)
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("failed to close model client", "error", err)
		}
	}()

	if interactive {
		return runInteractive(ctx, out, os.Stdin, svc)
	}

	out.info("🚀 Mac Agent 시작 중...")
	out.info(fmt.Sprintf("📝 명령어 실행: %s", command))
	reply := svc.Handle(ctx, command, viper.GetString("session-id"))
	if ctx.Err() != nil {
		out.warn("⚠️ 사용자에 의해 중단되었습니다.")
		return nil
	}
	out.reply(reply)
	return nil
}

// wireModel builds the calendar, model client, agents and router into cfg.
func wireModel(p *profile.Profile, cfg *assistant.Config) error {
	if err := p.ValidateLLM(); err != nil {
		return err
	}

	loc, err := timezone.ParseTimezone(p.Timezone)
	if err != nil {
		return err
	}
	now := timezone.Clock(loc)

	var backend calendar.Backend
	switch p.CalendarBackend {
	case "applescript":
		runner := calendar.OSAScript{}
		if !runner.IsAvailable() {
			return errors.New("osascript not found: the applescript backend needs macOS (use --calendar-backend memory)")
		}
		backend = calendar.NewAppleScriptBackend(runner)
	case "memory":
		backend = calendar.NewMemoryBackend(append([]string{p.CalendarName}, calendar.SearchCalendars...)...)
	default:
		return errors.Errorf("unknown calendar backend %q", p.CalendarBackend)
	}
	cal := calendar.NewService(backend, aitime.NewParser(loc).WithClock(now), p.CalendarName,
		calendar.WithClock(now))

	llm, err := ai.NewLLMService(ai.NewLLMConfigFromProfile(p))
	if err != nil {
		return errors.Wrap(err, "failed to create LLM service")
	}
	factory := agent.NewFactory(llm, cal, agent.WithFactoryClock(now))

	cfg.LLM = llm
	cfg.Factory = factory
	cfg.Router = router.NewService(factory)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
