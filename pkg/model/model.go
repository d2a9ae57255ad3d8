package model

import (
	"context"
	"strings"

	"github.com/rybuilt/humelink/pkg/tools"
)

// Role values used in the generic message sequence.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// StopReason is the backend's signal for why a generation ended
type StopReason string

const (
	StopToolUse StopReason = "tool_use"
	StopEndTurn StopReason = "end_turn"
)

// Message is one turn in the generic conversation sequence
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the backend. ID is the
// correlation token linking the call to its result.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// Request carries everything a backend call needs
type Request struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []tools.Declaration
	MaxTokens int
}

// Response is the backend's final message for one round
type Response struct {
	StopReason StopReason
	TextBlocks []string
	ToolCalls  []ToolCall
}

// Text joins the response's text blocks
func (r *Response) Text() string {
	return strings.Join(r.TextBlocks, "")
}

// Stream is a lazy sequence of incremental text fragments ending in a
// final message. Next advances to the next fragment; once it returns
// false, Final yields the accumulated message or the stream error.
type Stream interface {
	Next() bool
	Text() string
	Final() (*Response, error)
}

// Backend is the model backend capability the orchestrator consumes: a
// final-message primitive and a streaming primitive over the same
// request shape.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (Stream, error)
	Name() string
}
