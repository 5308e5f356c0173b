// Package llm contains the chat-completions client used by every agent
// adapter. The wire format is the OpenAI-compatible API, which all hosted
// endpoints the harness targets (OpenAI, OpenRouter, DeepSeek) speak.
package llm

import "context"

// Message is a single conversation turn.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on role "tool" results
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // set on assistant turns that called tools
}

// ToolDefinition describes a callable tool advertised to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// TokenUsage tracks token consumption for a single request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage from another request.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// CompletionRequest is a provider-agnostic completion request.
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
	JSONMode    bool // ask the provider for a JSON object response
}

// CompletionResponse is the aggregated model response.
type CompletionResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      TokenUsage
}

// Client is the completion interface agents depend on.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// Config configures an HTTP-backed client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    int // seconds
	Headers    map[string]string
	MaxRetries int
}
