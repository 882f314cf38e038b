// Package chat holds the provider-agnostic conversation types shared by the
// orchestrator, the session stores, the tool registry and the model adapters.
package chat

import (
	"bytes"
	"encoding/json"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run a named tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of a ToolCall, correlated by CallID.
type ToolResult struct {
	CallID  string          `json:"call_id"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload"`
	IsError bool            `json:"is_error,omitempty"`
}

// ToolDefinition describes a tool to the model. Schema is a JSON schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// Turn is one entry of a conversation history. Assistant turns may carry
// ToolCalls; tool turns bundle the ToolResults of the preceding assistant turn.
type Turn struct {
	Role        Role         `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UserTurn builds a user turn.
func UserTurn(text string, at time.Time) Turn {
	return Turn{Role: RoleUser, Text: text, CreatedAt: at}
}

// AssistantTurn builds an assistant turn.
func AssistantTurn(text string, calls []ToolCall, at time.Time) Turn {
	return Turn{Role: RoleAssistant, Text: text, ToolCalls: calls, CreatedAt: at}
}

// ToolTurn builds a turn bundling tool results.
func ToolTurn(results []ToolResult, at time.Time) Turn {
	return Turn{Role: RoleTool, ToolResults: results, CreatedAt: at}
}

// CallInput turns raw tool arguments into input that is always valid JSON.
// Empty arguments become an empty object. Text that does not parse, such as
// arguments cut off by a token limit, is kept as a JSON string so the call can
// still be stored and replayed.
func CallInput(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	b, err := json.Marshal(string(raw))
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Window returns the most recent n turns of history. The returned slice is a
// copy; history is left untouched.
func Window(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return append([]Turn(nil), history...)
	}
	return append([]Turn(nil), history[len(history)-n:]...)
}
