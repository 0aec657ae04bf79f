package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxErrorBody          = 4 << 10
)

// HTTPConfig is shared by the hosted chat-completion backends.
type HTTPConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Client      *http.Client
}

func (c HTTPConfig) normalized(defaultBaseURL string) (HTTPConfig, error) {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.APIKey == "" {
		return c, &ConfigurationError{Provider: c.Provider, Message: "api key is not set"}
	}
	if strings.TrimSpace(c.Model) == "" {
		return c, &ConfigurationError{Provider: c.Provider, Message: "model is not set"}
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return c, nil
}

// requestOptions folds call-site eino options over the configured defaults.
func (c HTTPConfig) requestOptions(opts []model.Option) *model.Options {
	modelName := c.Model
	maxTokens := c.MaxTokens
	temperature := c.Temperature
	return model.GetCommonOptions(&model.Options{
		Model:       &modelName,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}, opts...)
}

// postJSON sends body to url and decodes a 2xx reply into out. Every failure comes back
// as a *BackendError for provider.
func postJSON(ctx context.Context, cfg HTTPConfig, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &BackendError{Provider: cfg.Provider, Message: "encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &BackendError{Provider: cfg.Provider, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return &BackendError{Provider: cfg.Provider, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errorFromStatus(cfg.Provider, resp.StatusCode, errorMessage(raw), parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{Provider: cfg.Provider, StatusCode: resp.StatusCode, Message: "malformed response payload", Cause: err}
	}
	return nil
}

// errorMessage pulls error.message out of the structured error body both API families use.
func errorMessage(raw []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(body.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	return strings.TrimSpace(string(raw))
}

// singleMessageStream adapts a Generate result to eino's streaming contract.
func singleMessageStream(msg *schema.Message) *schema.StreamReader[*schema.Message] {
	return schema.StreamReaderFromArray([]*schema.Message{msg})
}

func emptyCompletion(provider string) error {
	return &BackendError{Provider: provider, Message: fmt.Sprintf("%s returned no completion", provider)}
}
