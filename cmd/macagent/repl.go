package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/hrygo/macagent/plugin/ai/timeout"
	"github.com/hrygo/macagent/server/service/assistant"
	"github.com/hrygo/macagent/store"
)

const replUserID = "interactive"

// runInteractive reads utterances line by line until quit, EOF or Ctrl-C.
// Every run starts a fresh session.
func runInteractive(ctx context.Context, out *printer, in io.Reader, svc *assistant.Service) error {
	sessionID := svc.NewSession(ctx, replUserID)

	out.heading("🤖 Mac Agent 대화형 모드 시작")
	out.info("💡 도움말:")
	out.info("  - 'quit' 또는 'exit': 종료")
	out.info("  - 'history': 대화 내역 보기")
	out.info("  - 'session': 세션 정보 보기")
	out.info("  - 'clear': 새 세션 시작")
	out.info("  - 'help': 도움말 보기")
	out.info(strings.Repeat("-", 50))

	// Stops the reader goroutine when the loop returns.
	readerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readerCtx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		out.prompt("사용자: ")

		var input string
		select {
		case <-ctx.Done():
			out.warn("\n👋 Ctrl+C로 Mac Agent를 종료합니다.")
			return nil
		case err := <-readErr:
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			out.info("👋 Mac Agent를 종료합니다.")
			return nil
		case input = <-lines:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit":
			out.info("👋 Mac Agent를 종료합니다.")
			return nil
		case "help":
			out.heading("\n💡 사용 가능한 명령어:")
			out.plain("  - 캘린더 관련: '내일 회의 일정 추가해줘', '오늘 일정 보여줘'")
			out.plain("  - 일반 대화: '안녕하세요', '날씨 어때?'")
			out.plain("  - 시스템 명령어: quit, history, session, clear, help")
		case "history":
			history := svc.History(ctx, sessionID, timeout.REPLHistoryLimit)
			if len(history) == 0 {
				out.info("📜 대화 내역이 없습니다.")
				continue
			}
			out.heading("\n📜 대화 내역:")
			for _, entry := range history {
				out.plain("  " + entry)
			}
		case "session":
			info, err := svc.SessionInfo(sessionID)
			if errors.Is(err, store.ErrSessionNotFound) {
				out.warn("🔍 세션 정보를 찾을 수 없습니다.")
				continue
			}
			if err != nil {
				return err
			}
			out.heading("\n🔍 세션 정보:")
			out.summary(info, false)
		case "clear":
			sessionID = svc.NewSession(ctx, replUserID)
			out.info("🆕 새 세션을 시작했습니다.")
		default:
			reply := svc.Handle(ctx, input, sessionID)
			if ctx.Err() != nil {
				out.warn("\n👋 처리 중 종료 요청을 받았습니다.")
				return nil
			}
			out.reply(reply)
		}
	}
}
