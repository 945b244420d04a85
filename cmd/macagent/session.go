package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hrygo/macagent/server/service/assistant"
	"github.com/hrygo/macagent/store"
)

var errInvalidSessionCommand = errors.New("잘못된 세션 관리 명령입니다")

// manageSessions runs one --session action.
func manageSessions(ctx context.Context, out *printer, svc *assistant.Service, action, sessionID string) error {
	if action != "list" && sessionID == "" {
		return fmt.Errorf("%w: --session %s requires --session-id", errInvalidSessionCommand, action)
	}

	switch action {
	case "list":
		sessions := svc.ListSessions()
		if len(sessions) == 0 {
			out.info("📋 활성 세션이 없습니다.")
			return nil
		}
		out.heading("📋 활성 세션 목록:")
		for _, s := range sessions {
			out.summary(s, false)
			out.plain("")
		}

	case "info":
		info, err := svc.SessionInfo(sessionID)
		if errors.Is(err, store.ErrSessionNotFound) {
			out.warn(fmt.Sprintf("❌ 세션 %s을 찾을 수 없습니다.", shortID(sessionID)))
			return nil
		}
		if err != nil {
			return err
		}
		out.heading("🔍 세션 정보:")
		out.summary(info, true)

	case "delete":
		deleted, err := svc.DeleteSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !deleted {
			out.warn(fmt.Sprintf("❌ 세션 %s을 찾을 수 없습니다.", shortID(sessionID)))
			return nil
		}
		out.info(fmt.Sprintf("✅ 세션 %s이 삭제되었습니다.", shortID(sessionID)))

	case "history":
		history := svc.History(ctx, sessionID, 0)
		if len(history) == 0 {
			out.info(fmt.Sprintf("📜 세션 %s의 대화 내역이 없습니다.", shortID(sessionID)))
			return nil
		}
		out.heading(fmt.Sprintf("📜 세션 %s 대화 내역:", shortID(sessionID)))
		for _, entry := range history {
			out.plain("  " + entry)
		}

	default:
		return fmt.Errorf("%w: %q", errInvalidSessionCommand, action)
	}
	return nil
}
