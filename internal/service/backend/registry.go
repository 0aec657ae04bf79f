package backend

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-debate/backend/internal/config"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

// Registry maps each persona to its adapter. Personas whose backend could not be
// configured keep the configuration error so it can be reported per turn.
type Registry struct {
	adapters map[persona.ID]Generator
	missing  map[persona.ID]error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[persona.ID]Generator),
		missing:  make(map[persona.ID]error),
	}
}

// Register binds a generator to a persona.
func (r *Registry) Register(id persona.ID, g Generator) {
	r.adapters[id] = g
	delete(r.missing, id)
}

// MarkUnavailable records why a persona has no usable backend.
func (r *Registry) MarkUnavailable(id persona.ID, err error) {
	r.missing[id] = err
	delete(r.adapters, id)
}

// Generator returns the backend bound to id.
func (r *Registry) Generator(id persona.ID) (Generator, error) {
	if !id.Valid() {
		return nil, &persona.UnknownPersonaError{ID: string(id)}
	}
	if g, ok := r.adapters[id]; ok {
		return g, nil
	}
	if err, ok := r.missing[id]; ok {
		return nil, err
	}
	return nil, &ConfigurationError{Provider: id.Tag(), Message: "no backend registered"}
}

// Available lists personas with a usable backend.
func (r *Registry) Available() []persona.ID {
	out := make([]persona.ID, 0, len(r.adapters))
	for _, id := range persona.IDs {
		if _, ok := r.adapters[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Build creates an adapter for every persona in cfg. Missing credentials do not fail the
// build; they are recorded so only that persona's turns are affected.
func Build(ctx context.Context, cfg *config.Config, limiter Limiter) (*Registry, error) {
	registry := NewRegistry()

	for _, id := range persona.IDs {
		pc, ok := cfg.Backends.Personas[id]
		if !ok {
			registry.MarkUnavailable(id, &ConfigurationError{Provider: id.Tag(), Message: "no backend configured"})
			continue
		}

		chatModel, err := newChatModel(ctx, cfg, pc)
		if err != nil {
			log.Printf("[backend] %s (%s): %v", id, pc.Provider, err)
			registry.MarkUnavailable(id, err)
			continue
		}

		adapter, err := NewAdapter(ctx, pc.Provider, chatModel, limiter)
		if err != nil {
			return nil, fmt.Errorf("build adapter for %s: %w", id, err)
		}
		registry.Register(id, adapter)
		log.Printf("[backend] %s bound to %s model=%s", id, pc.Provider, pc.Model)
	}

	return registry, nil
}

func newChatModel(ctx context.Context, cfg *config.Config, pc config.ProviderConfig) (model.BaseChatModel, error) {
	httpCfg := HTTPConfig{
		Provider:    pc.Provider,
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       pc.Model,
		MaxTokens:   cfg.Backends.MaxTokens,
		Temperature: cfg.Backends.Temperature,
	}

	switch pc.Kind {
	case config.KindAnthropic:
		if pc.APIKey == "" {
			return nil, missingKey(pc)
		}
		return NewAnthropic(httpCfg)
	case config.KindOpenAICompatible:
		if pc.APIKey == "" {
			return nil, missingKey(pc)
		}
		return NewOpenAICompatible(httpCfg, pc.BaseURL)
	case config.KindArk:
		if !cfg.AI.Enabled() && pc.Model == "" {
			return nil, missingKey(pc)
		}
		m, err := cfg.AI.NewChatModel(ctx, pc.Model, cfg.Backends.MaxTokens, cfg.Backends.Temperature)
		if err != nil {
			return nil, &ConfigurationError{Provider: pc.Provider, Message: err.Error()}
		}
		return m, nil
	default:
		return nil, &ConfigurationError{Provider: pc.Provider, Message: fmt.Sprintf("unsupported backend kind %q", pc.Kind)}
	}
}

func missingKey(pc config.ProviderConfig) error {
	return &ConfigurationError{Provider: pc.Provider, Message: pc.KeyEnvVar + " is not set"}
}
