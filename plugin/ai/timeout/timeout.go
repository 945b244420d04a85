// Package timeout defines centralized timeout and budget constants for AI operations.
// Package timeout 定义 AI 操作的集中式超时与预算常量。
package timeout

import "time"

// AI operation timeout constants.
// AI 操作超时常量。
const (
	// LLMCallTimeout is the timeout for a single chat completion request.
	// LLMCallTimeout 是单次 LLM 请求的超时时间。
	LLMCallTimeout = 60 * time.Second

	// AgentTimeout is the timeout for one bounded agent exchange.
	// AgentTimeout 是一次 Agent 对话交换的超时时间。
	AgentTimeout = 2 * time.Minute

	// ToolExecutionTimeout is the timeout for individual tool execution.
	// ToolExecutionTimeout 是单个工具执行的超时时间。
	ToolExecutionTimeout = 30 * time.Second

	// MaxRetries is the number of retries for transient LLM failures.
	// MaxRetries 是 LLM 临时错误的最大重试次数。
	MaxRetries = 2

	// RetryBaseDelay is the first backoff delay between LLM retries.
	RetryBaseDelay = 500 * time.Millisecond
)

// Exchange budgets. A budget counts the task message plus every agent turn.
// 对话交换预算：任务消息与每个 Agent 回合各计 1。
const (
	// IntentMaxMessages bounds the intent classification exchange.
	IntentMaxMessages = 2

	// CalendarMaxMessages bounds the calendar exchange.
	CalendarMaxMessages = 5

	// GeneralMaxMessages bounds the general assistant exchange.
	GeneralMaxMessages = 2
)

// Memory and history limits.
const (
	// MemoryWindow is the number of recent memory entries replayed to an agent.
	// MemoryWindow 是回放给 Agent 的最近记忆条数。
	MemoryWindow = 20

	// HistoryDefaultLimit is the default number of entries returned by history queries.
	HistoryDefaultLimit = 50

	// REPLHistoryLimit is the number of entries shown by the interactive history command.
	REPLHistoryLimit = 10

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	// MaxTruncateLength 是日志中字符串截断的最大长度。
	MaxTruncateLength = 200
)
