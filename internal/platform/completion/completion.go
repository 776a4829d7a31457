// Package completion is a stateless transport over an OpenAI-compatible
// chat-completions endpoint. It serializes a conversation and an optional
// tool manifest into one request and maps the response, or the failure, back.
// It never retries: retry and model fallback belong to the caller.
package completion

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoiceAuto lets the model decide whether to call a tool.
const ToolChoiceAuto = "auto"

// ToolCall is one function invocation requested by the model. ID is opaque
// and provider-assigned; Arguments is the raw JSON the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a conversation. Tool messages carry the ID of the
// assistant ToolCall they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition advertises a callable function to the model. Parameters is
// a JSON schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  string
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Result struct {
	Message      Message
	Usage        Usage
	FinishReason string
	Model        string
}

// Client performs exactly one completion round-trip per call.
type Client interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}
