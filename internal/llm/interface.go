package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/campbot/internal/chat"
)

// Client is minimal subset of openai.Client used by the model adapter; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Request is one model invocation: persona, callable tools and the history view.
type Request struct {
	System string
	Tools  []chat.ToolDefinition
	Turns  []chat.Turn
}

// Response is the model's answer. A response with ToolCalls asks the caller
// to run them and call the model again.
type Response struct {
	Texts     []string
	ToolCalls []chat.ToolCall
}

// Model is the provider-agnostic surface the orchestrator talks to.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
