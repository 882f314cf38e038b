package llm

import (
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/campbot/internal/config"
)

// NewClient creates the chat completion client. Any OpenAI-compatible server
// can be targeted through base_url.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(clientConfig)
}

// FromConfig builds the Model used by the assistant.
func FromConfig(cfg config.LLMConfig) *OpenAIModel {
	return NewOpenAIModel(NewClient(cfg), cfg.Model, cfg.MaxTokens)
}
