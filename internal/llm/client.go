// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
)

// Role values for chat messages, provider-neutral.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolDefinition describes a callable tool to the model. Parameters is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON produced by the model; validation happens at the registry edge.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatMessage is a provider-neutral chat turn. Assistant messages may carry
// ToolCalls; tool-result messages carry the ToolCallID they answer.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	IsError    bool
}

// ChatRequest is one tool-loop round.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float32
}

// ChatResponse is the model's answer: either a final text reply, one or
// more tool calls, or both.
type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Chat sends one round of the conversation, including tool definitions,
	// and returns the model's reply or requested tool calls.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider name.
	Name() string
}
