// Package router classifies user utterances into the flow that handles them.
package router

import (
	"context"

	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/ai/agent"
)

// RouterService defines the intent routing interface.
type RouterService interface {
	// Classify returns the intent of utterance. It never fails: any
	// classification problem degrades to IntentGeneral with the cause in
	// the reasoning.
	Classify(ctx context.Context, utterance string, memory agent.MemorySource) *UserIntent
}

// Intent represents the type of user intent.
type Intent string

const (
	// IntentCalendar covers creating, listing, updating and deleting events.
	IntentCalendar Intent = "calendar"
	// IntentGeneral covers everything else.
	IntentGeneral Intent = "general"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	return i == IntentCalendar || i == IntentGeneral
}

// UserIntent is the structured answer of the classifier.
type UserIntent struct {
	IntentType Intent `json:"intent_type"`
	Reasoning  string `json:"reasoning"`
}

// Fallback reasonings.
const (
	ReasonNoStructuredResult = "분류 실패로 일반 대화로 처리"
	reasonErrorPrefix        = "오류 발생으로 일반 대화로 처리: "
)

// UserIntentSchema is the response format requested from the classifier.
var UserIntentSchema = &ai.ResponseSchema{
	Name:        "user_intent",
	Description: "사용자 의도 분류 결과",
	Schema: ai.Object(map[string]*ai.JSONSchema{
		"intent_type": ai.Enum("의도 유형: calendar(캘린더 관련) 또는 general(일반 대화)",
			string(IntentCalendar), string(IntentGeneral)),
		"reasoning": ai.String("분류 이유"),
	}, "intent_type", "reasoning"),
}
