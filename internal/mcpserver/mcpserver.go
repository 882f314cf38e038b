// Package mcpserver exposes the tool registry as a Model Context Protocol
// server so external agents can use the same tools as the chat assistant.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/logger"
	"github.com/comigor/campbot/pkg/tools"
)

// Executor is the part of the tool registry the server needs.
type Executor interface {
	List() []tools.Tool
	Execute(ctx context.Context, call chat.ToolCall) chat.ToolResult
}

// New builds an MCP server offering every registered tool.
func New(reg Executor, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"campbot",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for _, t := range reg.List() {
		def := t.Definition()
		s.AddTool(def, bridge(reg, def.Name))
		logger.L.Debug("MCP tool registered", "tool", def.Name)
	}
	return s
}

// Handler serves s over streamable HTTP.
func Handler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

// bridge turns an MCP tool call into a registry call. Tool failures are
// reported as error results, never as protocol errors.
func bridge(reg Executor, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := json.RawMessage(`{}`)
		if req.Params.Arguments != nil {
			b, err := json.Marshal(req.Params.Arguments)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("arguments illisibles: %v", err)), nil
			}
			input = b
		}

		res := reg.Execute(ctx, chat.ToolCall{ID: "mcp-" + uuid.NewString(), Name: name, Input: input})
		if res.IsError {
			return mcp.NewToolResultError(string(res.Payload)), nil
		}
		return mcp.NewToolResultText(string(res.Payload)), nil
	}
}
