package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/macagent/plugin/ai"
	"github.com/hrygo/macagent/plugin/ai/timeout"
)

// Tool is the interface for agent tools.
// Tool 是代理工具的接口。
type Tool interface {
	// Name returns the name of the tool.
	Name() string

	// Description returns a description of what the tool does.
	Description() string

	// Parameters returns the JSON Schema of the tool's arguments.
	Parameters() *ai.JSONSchema

	// Run executes the tool with the raw JSON arguments chosen by the model.
	// Run 使用模型给出的 JSON 参数执行工具。
	Run(ctx context.Context, input string) (string, error)
}

// BaseTool provides a reusable base implementation for tools.
// BaseTool 为工具提供可复用的基础实现。
type BaseTool struct {
	name        string
	description string
	params      *ai.JSONSchema
	execute     func(ctx context.Context, input string) (string, error)
	validate    func(input string) error
	timeout     time.Duration
}

var _ Tool = (*BaseTool)(nil)

// ToolOption is a function that configures a BaseTool.
// ToolOption 是配置 BaseTool 的函数。
type ToolOption func(*BaseTool)

// WithTimeout sets a timeout for tool execution.
// WithTimeout 设置工具执行的超时时间。
func WithTimeout(timeout time.Duration) ToolOption {
	return func(t *BaseTool) {
		t.timeout = timeout
	}
}

// WithValidator sets a custom input validator.
// WithValidator 设置自定义输入验证器。
func WithValidator(validator func(input string) error) ToolOption {
	return func(t *BaseTool) {
		t.validate = validator
	}
}

// NewBaseTool creates a new BaseTool.
// NewBaseTool 创建一个新的 BaseTool。
//
// Example:
//
//	tool := NewBaseTool(
//	    "get_events",
//	    "List calendar events",
//	    ai.Object(map[string]*ai.JSONSchema{"date_str": ai.String("day to list")}),
//	    func(ctx context.Context, input string) (string, error) {
//	        return `{"success":true}`, nil
//	    },
//	)
func NewBaseTool(
	name string,
	description string,
	params *ai.JSONSchema,
	execute func(ctx context.Context, input string) (string, error),
	opts ...ToolOption,
) *BaseTool {
	if params == nil {
		params = ai.Object(map[string]*ai.JSONSchema{})
	}
	tool := &BaseTool{
		name:        name,
		description: description,
		params:      params,
		execute:     execute,
		timeout:     timeout.ToolExecutionTimeout,
		validate:    defaultValidator,
	}

	for _, opt := range opts {
		opt(tool)
	}

	return tool
}

// Name returns the name of the tool.
func (t *BaseTool) Name() string {
	return t.name
}

// Description returns the description of the tool.
func (t *BaseTool) Description() string {
	return t.description
}

// Parameters returns the JSON Schema for the tool arguments.
func (t *BaseTool) Parameters() *ai.JSONSchema {
	return t.params
}

// Run executes the tool with validation and error handling.
// Run 执行工具，包含验证和错误处理。
func (t *BaseTool) Run(ctx context.Context, input string) (string, error) {
	// 1. Input validation
	if err := t.validate(input); err != nil {
		return "", fmt.Errorf("input validation failed: %w", err)
	}

	// 2. Apply timeout if set
	execCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	// 3. Execute the tool
	result, err := t.execute(execCtx, input)
	if err != nil {
		return "", fmt.Errorf("tool execution failed: %w", err)
	}

	// 4. Validate result
	if strings.TrimSpace(result) == "" {
		return "", fmt.Errorf("tool returned empty result")
	}

	return result, nil
}

// defaultValidator accepts an empty input or a JSON object.
// defaultValidator 接受空输入或 JSON 对象。
func defaultValidator(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return nil
}

// ToolResult represents the result of a tool execution.
// ToolResult 表示工具执行的结果。
type ToolResult struct {
	Name     string        `json:"name"`
	Input    string        `json:"input"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Success  bool          `json:"success"`
}

// NewToolResult creates a new ToolResult.
func NewToolResult(name, input, output string, duration time.Duration, err error) *ToolResult {
	result := &ToolResult{
		Name:     name,
		Input:    input,
		Output:   output,
		Duration: duration,
		Success:  err == nil,
	}
	if err != nil {
		result.Error = err.Error()
		result.Output = fmt.Sprintf("Error: %v", err)
	}
	return result
}
