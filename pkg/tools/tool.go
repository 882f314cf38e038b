package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool is the interface for all tools
type Tool interface {
	// Definition returns the tool name, description and input contract.
	Definition() mcp.Tool
	// Run executes the tool with input already validated against Definition.
	// The returned value is marshaled as the tool result payload.
	Run(ctx context.Context, input json.RawMessage) (any, error)
}

type result struct {
	Success bool `json:"success"`
}
