package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/campbot/pkg/tools"
)

func callTool(t *testing.T, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	reg := tools.NewRegistry(time.Second, &tools.FAQTool{})
	New(reg, "test")

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := bridge(reg, name)(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return res, payload
}

func TestBridge(t *testing.T) {
	res, payload := callTool(t, "get_faq", map[string]any{"topic": "paiement"})
	require.False(t, res.IsError)
	require.Equal(t, true, payload["success"])
	require.Equal(t, "paiement", payload["topic"])

	res, payload = callTool(t, "get_faq", nil)
	require.False(t, res.IsError)
	require.Equal(t, "all", payload["topic"])
}

func TestBridge_ErrorsBecomeToolErrors(t *testing.T) {
	res, payload := callTool(t, "get_faq", map[string]any{"topic": "météo"})
	require.True(t, res.IsError)
	require.Equal(t, tools.CodeInvalidInput, payload["error"])

	res, payload = callTool(t, "launch_rocket", map[string]any{})
	require.True(t, res.IsError)
	require.Equal(t, tools.CodeUnknownTool, payload["error"])
}
