package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/calendar"
)

// Calendar tool names.
const (
	ToolCreateEvent = "create_event"
	ToolGetEvents   = "get_events"
	ToolUpdateEvent = "update_event"
	ToolDeleteEvent = "delete_event"
)

type createEventArgs struct {
	DateStr         string `json:"date_str"`
	Title           string `json:"title"`
	TimeStr         string `json:"time_str"`
	DurationMinutes int    `json:"duration_minutes"`
}

type getEventsArgs struct {
	DateStr     string `json:"date_str"`
	Keywords    string `json:"keywords"`
	MonthsRange int    `json:"months_range"`
}

type updateEventArgs struct {
	OriginalTitle string `json:"original_title"`
	NewDateStr    string `json:"new_date_str"`
	NewTimeStr    string `json:"new_time_str"`
	NewTitle      string `json:"new_title"`
}

type deleteEventArgs struct {
	Title   string `json:"title"`
	DateStr string `json:"date_str"`
}

// CalendarTools exposes the four calendar operations as agent tools. Each
// tool answers with the operation's JSON-encoded result.
// CalendarTools 将四个日历操作暴露为 Agent 工具。
func CalendarTools(cal calendar.Capability) []Tool {
	return []Tool{
		NewBaseTool(ToolCreateEvent,
			"캘린더에 새 일정을 생성합니다.",
			ai.Object(map[string]*ai.JSONSchema{
				"date_str":         ai.String("일정 날짜 (예: '5월 17일', 'May 17th', '내일', '2025-05-17')"),
				"title":            ai.String("일정 제목"),
				"time_str":         ai.String("시작 시간 (예: '오후 7시', '19:00'). 없으면 09:00"),
				"duration_minutes": ai.Integer("일정 길이(분), 기본 60"),
			}, "date_str", "title"),
			func(ctx context.Context, input string) (string, error) {
				var args createEventArgs
				if err := decodeArgs(input, &args); err != nil {
					return "", err
				}
				return encodeResult(cal.CreateEvent(ctx, args.DateStr, args.Title, args.TimeStr, args.DurationMinutes))
			}),
		NewBaseTool(ToolGetEvents,
			"캘린더에서 일정을 조회합니다. 날짜를 주면 그 날 하루를, 없으면 현재 기준 전후 months_range 개월을 검색합니다.",
			ai.Object(map[string]*ai.JSONSchema{
				"date_str":     ai.String("조회할 날짜 (선택)"),
				"keywords":     ai.String("제목 검색어 (선택, 대소문자 무시)"),
				"months_range": ai.Integer("날짜가 없을 때 검색할 개월 수, 기본 1"),
			}),
			func(ctx context.Context, input string) (string, error) {
				var args getEventsArgs
				if err := decodeArgs(input, &args); err != nil {
					return "", err
				}
				return encodeResult(cal.GetEvents(ctx, args.DateStr, args.Keywords, args.MonthsRange))
			}),
		NewBaseTool(ToolUpdateEvent,
			"기존 일정을 수정합니다. 시간을 바꾸려면 새 날짜도 함께 주어야 합니다.",
			ai.Object(map[string]*ai.JSONSchema{
				"original_title": ai.String("수정할 일정의 현재 제목"),
				"new_date_str":   ai.String("새 날짜 (선택)"),
				"new_time_str":   ai.String("새 시간 (선택, 새 날짜와 함께)"),
				"new_title":      ai.String("새 제목 (선택)"),
			}, "original_title"),
			func(ctx context.Context, input string) (string, error) {
				var args updateEventArgs
				if err := decodeArgs(input, &args); err != nil {
					return "", err
				}
				return encodeResult(cal.UpdateEvent(ctx, args.OriginalTitle, args.NewDateStr, args.NewTimeStr, args.NewTitle))
			}),
		NewBaseTool(ToolDeleteEvent,
			"일정을 삭제합니다. 날짜를 주면 그 날의 일정만 대상으로 합니다.",
			ai.Object(map[string]*ai.JSONSchema{
				"title":    ai.String("삭제할 일정 제목"),
				"date_str": ai.String("일정 날짜 (선택)"),
			}, "title"),
			func(ctx context.Context, input string) (string, error) {
				var args deleteEventArgs
				if err := decodeArgs(input, &args); err != nil {
					return "", err
				}
				return encodeResult(cal.DeleteEvent(ctx, args.Title, args.DateStr))
			}),
	}
}

func decodeArgs(input string, v any) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// encodeResult renders a result as JSON without escaping HTML characters.
func encodeResult(result *calendar.Result) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
