package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/logger"
)

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// OpenAIModel adapts an OpenAI-compatible chat completion API to Model.
type OpenAIModel struct {
	client    Client
	model     string
	maxTokens int
}

// NewOpenAIModel wraps client for the given model name.
func NewOpenAIModel(client Client, model string, maxTokens int) *OpenAIModel {
	return &OpenAIModel{client: client, model: model, maxTokens: maxTokens}
}

func (m *OpenAIModel) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  toMessages(req.System, req.Turns),
		Tools:     toTools(req.Tools),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	out := &Response{}
	if msg.Content != "" {
		out.Texts = append(out.Texts, msg.Content)
	}
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			out.Texts = append(out.Texts, part.Text)
		}
	}
	for _, tc := range msg.ToolCalls {
		input := chat.CallInput([]byte(tc.Function.Arguments))
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}
	return out, nil
}

func toTools(defs []chat.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		schema := d.Schema
		if len(schema) == 0 {
			schema = emptyObjectSchema
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schema,
			},
		})
	}
	return tools
}

// toMessages expands turns into the OpenAI wire format: one tool message per
// result. Tool turns whose requesting assistant turn was cut off by the
// history window are dropped, since the API rejects orphaned tool messages.
func toMessages(system string, turns []chat.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	pending := map[string]bool{}
	for _, t := range turns {
		switch t.Role {
		case chat.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Text})
		case chat.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Text}
			for _, tc := range t.ToolCalls {
				pending[tc.ID] = true
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			msgs = append(msgs, msg)
		case chat.RoleTool:
			for _, r := range t.ToolResults {
				if !pending[r.CallID] {
					logger.L.Debug("dropping orphaned tool result", "call_id", r.CallID)
					continue
				}
				delete(pending, r.CallID)
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    string(r.Payload),
					ToolCallID: r.CallID,
					Name:       r.Name,
				})
			}
		}
	}
	return msgs
}
