// Package backend turns a prompt into text through one hosted model per persona.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Generator is the single capability the dialogue engine needs from a backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Limiter spaces calls per provider.
type Limiter interface {
	Wait(ctx context.Context, provider string) error
}

// Deferrer is implemented by limiters that can push a provider's next slot back, so a
// Retry-After from the provider is honoured by the next call to it.
type Deferrer interface {
	Defer(provider string, d time.Duration)
}

// Adapter binds one chat model to its provider identity and rate limit.
type Adapter struct {
	provider string
	limiter  Limiter
	chain    compose.Runnable[string, *schema.Message]
}

// NewAdapter compiles prompt → user message → chat model into a runnable chain.
func NewAdapter(ctx context.Context, provider string, chatModel model.BaseChatModel, limiter Limiter) (*Adapter, error) {
	if chatModel == nil {
		return nil, &ConfigurationError{Provider: provider, Message: "chat model is nil"}
	}

	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, prompt string) ([]*schema.Message, error) {
		return []*schema.Message{schema.UserMessage(prompt)}, nil
	}))
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s chain: %w", provider, err)
	}

	return &Adapter{
		provider: provider,
		limiter:  limiter,
		chain:    runnable,
	}, nil
}

// Provider is the rate-limit identity of this adapter.
func (a *Adapter) Provider() string {
	return a.provider
}

// Generate waits for the provider's rate limit and issues exactly one call. Failures come
// back as *BackendError unless ctx itself was cancelled.
func (a *Adapter) Generate(ctx context.Context, prompt string) (string, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, a.provider); err != nil {
			return "", fmt.Errorf("%s rate limit wait: %w", a.provider, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s call skipped: %w", a.provider, err)
	}

	msg, err := a.chain.Invoke(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s call interrupted: %w", a.provider, ctxErr)
		}
		failure := a.classify(err)
		a.backoff(failure)
		return "", failure
	}
	if msg == nil {
		return "", emptyCompletion(a.provider)
	}

	log.Printf("[backend] %s replied length=%d", a.provider, len(msg.Content))
	return msg.Content, nil
}

func (a *Adapter) classify(err error) error {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr
	}
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return &BackendError{Provider: a.provider, Cause: err}
}

// backoff 记录失败；可重试且带 Retry-After 时推迟该 provider 的下一次调用
func (a *Adapter) backoff(err error) {
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		return
	}
	log.Printf("[backend] %s failed retryable=%t: %v", a.provider, backendErr.Retryable(), backendErr)

	if !backendErr.Retryable() || backendErr.RetryAfter == nil {
		return
	}
	if d, ok := a.limiter.(Deferrer); ok {
		d.Defer(a.provider, *backendErr.RetryAfter)
	}
}
