package backend

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const chatCompletionsPath = "/v1/chat/completions"

// Default endpoints for the OpenAI-compatible providers.
const (
	OpenAIBaseURL   = "https://api.openai.com"
	XAIBaseURL      = "https://api.x.ai"
	DeepSeekBaseURL = "https://api.deepseek.com"
)

// OpenAICompatible talks to any /v1/chat/completions endpoint with bearer auth
// (OpenAI, xAI, DeepSeek).
type OpenAICompatible struct {
	cfg HTTPConfig
}

var _ model.BaseChatModel = (*OpenAICompatible)(nil)

// NewOpenAICompatible validates cfg and returns a chat model. A missing key is reported as
// a *ConfigurationError before any request is made.
func NewOpenAICompatible(cfg HTTPConfig, defaultBaseURL string) (*OpenAICompatible, error) {
	cfg, err := cfg.normalized(defaultBaseURL)
	if err != nil {
		return nil, err
	}
	return &OpenAICompatible{cfg: cfg}, nil
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature *float32                `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate issues a single chat completion request.
func (m *OpenAICompatible) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := m.cfg.requestOptions(opts)

	body := chatCompletionRequest{
		Model:       *options.Model,
		Messages:    make([]chatCompletionMessage, 0, len(input)),
		Temperature: options.Temperature,
	}
	if options.MaxTokens != nil {
		body.MaxTokens = *options.MaxTokens
	}
	for _, msg := range input {
		if msg == nil {
			continue
		}
		body.Messages = append(body.Messages, chatCompletionMessage{Role: string(msg.Role), Content: msg.Content})
	}

	var out chatCompletionResponse
	headers := map[string]string{"Authorization": "Bearer " + m.cfg.APIKey}
	if err := postJSON(ctx, m.cfg, m.cfg.BaseURL+chatCompletionsPath, headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, emptyCompletion(m.cfg.Provider)
	}

	return schema.AssistantMessage(strings.TrimSpace(out.Choices[0].Message.Content), nil), nil
}

// Stream returns the Generate result as a one-element stream.
func (m *OpenAICompatible) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return singleMessageStream(msg), nil
}
