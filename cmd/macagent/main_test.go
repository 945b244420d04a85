package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/macagent/internal/profile"
	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/ai/agent"
	"github.com/hrygo/macagent/plugin/ai/aitime"
	"github.com/hrygo/macagent/plugin/ai/memory"
	"github.com/hrygo/macagent/plugin/ai/router"
	"github.com/hrygo/macagent/plugin/ai/session"
	"github.com/hrygo/macagent/plugin/calendar"
	"github.com/hrygo/macagent/server/service/assistant"
	teststore "github.com/hrygo/macagent/store/test"
)

func newTestAssistant(t *testing.T, steps ...ai.ScriptStep) *assistant.Service {
	t.Helper()
	ctx := context.Background()
	st := teststore.NewTestingStore(ctx, t, profile.DriverFile)
	registry, err := session.NewRegistry(ctx, st)
	require.NoError(t, err)

	cal := calendar.NewService(calendar.NewMemoryBackend(calendar.DefaultCalendarName),
		aitime.NewParser(nil), calendar.DefaultCalendarName)
	llm := ai.NewScriptedLLM(steps...)
	factory := agent.NewFactory(llm, cal)
	return assistant.NewService(assistant.Config{
		Registry: registry,
		Memory:   memory.NewService(st),
		Saver:    st,
		Router:   router.NewService(factory),
		Factory:  factory,
		LLM:      llm,
	})
}

func TestInteractiveSession(t *testing.T) {
	svc := newTestAssistant(t,
		ai.ScriptStep{Content: `{"intent_type":"general","reasoning":"인사"}`},
		ai.ScriptStep{Content: "안녕하세요!"},
	)
	var out bytes.Buffer
	in := strings.NewReader("\n안녕\nhistory\nsession\nhelp\nclear\nquit\nignored\n")

	require.NoError(t, runInteractive(context.Background(), newPrinter(&out), in, svc))

	text := out.String()
	assert.Contains(t, text, "🤖 안녕하세요!")
	assert.Contains(t, text, "user: 안녕")
	assert.Contains(t, text, "메시지 수:")
	assert.Contains(t, text, "🆕 새 세션을 시작했습니다.")
	assert.Contains(t, text, "👋 Mac Agent를 종료합니다.")
	assert.Len(t, svc.ListSessions(), 2)
}

func TestInteractiveEOF(t *testing.T) {
	svc := newTestAssistant(t)
	var out bytes.Buffer
	require.NoError(t, runInteractive(context.Background(), newPrinter(&out), strings.NewReader(""), svc))
	assert.Contains(t, out.String(), "👋 Mac Agent를 종료합니다.")
}

func TestManageSessions(t *testing.T) {
	ctx := context.Background()
	svc := newTestAssistant(t)
	var out bytes.Buffer
	p := newPrinter(&out)

	require.NoError(t, manageSessions(ctx, p, svc, "list", ""))
	assert.Contains(t, out.String(), "활성 세션이 없습니다")

	id := svc.NewSession(ctx, "김덕배")
	out.Reset()
	require.NoError(t, manageSessions(ctx, p, svc, "info", id))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "김덕배")

	out.Reset()
	require.NoError(t, manageSessions(ctx, p, svc, "history", id))
	assert.Contains(t, out.String(), "대화 내역이 없습니다")

	out.Reset()
	require.NoError(t, manageSessions(ctx, p, svc, "delete", id))
	assert.Contains(t, out.String(), "삭제되었습니다")

	out.Reset()
	require.NoError(t, manageSessions(ctx, p, svc, "info", id))
	assert.Contains(t, out.String(), "찾을 수 없습니다")

	assert.ErrorIs(t, manageSessions(ctx, p, svc, "info", ""), errInvalidSessionCommand)
	assert.ErrorIs(t, manageSessions(ctx, p, svc, "purge", id), errInvalidSessionCommand)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678...", shortID("1234567890"))
}
