package backend

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// AnthropicBaseURL is the default Messages API endpoint.
	AnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	messagesPath     = "/v1/messages"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	cfg HTTPConfig
}

var _ model.BaseChatModel = (*Anthropic)(nil)

// NewAnthropic validates cfg and returns a chat model.
func NewAnthropic(cfg HTTPConfig) (*Anthropic, error) {
	cfg, err := cfg.normalized(AnthropicBaseURL)
	if err != nil {
		return nil, err
	}
	return &Anthropic{cfg: cfg}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate issues a single Messages API request. System messages are lifted into the
// top-level system field.
func (m *Anthropic) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := m.cfg.requestOptions(opts)

	body := anthropicRequest{
		Model:       *options.Model,
		Messages:    make([]anthropicMessage, 0, len(input)),
		MaxTokens:   150,
		Temperature: options.Temperature,
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		body.MaxTokens = *options.MaxTokens
	}

	var system []string
	for _, msg := range input {
		if msg == nil {
			continue
		}
		if msg.Role == schema.System {
			system = append(system, msg.Content)
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: string(msg.Role), Content: msg.Content})
	}
	body.System = strings.Join(system, "\n\n")

	var out anthropicResponse
	headers := map[string]string{
		"x-api-key":         m.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	if err := postJSON(ctx, m.cfg, m.cfg.BaseURL+messagesPath, headers, body, &out); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, emptyCompletion(m.cfg.Provider)
	}

	return schema.AssistantMessage(strings.TrimSpace(text.String()), nil), nil
}

// Stream returns the Generate result as a one-element stream.
func (m *Anthropic) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return singleMessageStream(msg), nil
}
