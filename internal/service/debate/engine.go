package debate

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
	"github.com/zhouzirui/z-debate/backend/internal/service/ai"
	"github.com/zhouzirui/z-debate/backend/internal/service/backend"
	"github.com/zhouzirui/z-debate/backend/internal/service/sanitize"
)

const (
	DefaultHistoryWindow = 8
	DefaultMaxTurns      = 100
)

// Backends resolves the adapter bound to a persona.
type Backends interface {
	Generator(id persona.ID) (backend.Generator, error)
}

// Prompter renders the instruction text for one turn.
type Prompter interface {
	Build(ctx context.Context, in ai.PromptInput) (string, error)
}

// Options tune the engine; zero values fall back to defaults.
type Options struct {
	HistoryWindow int
	MaxTurns      int
}

// Engine runs the prompt → backend → sanitize → append pipeline for one turn at a time.
type Engine struct {
	backends Backends
	prompts  Prompter
	window   int
	maxTurns int
}

// NewEngine wires the engine to its collaborators.
func NewEngine(backends Backends, prompts Prompter, opts Options) *Engine {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &Engine{
		backends: backends,
		prompts:  prompts,
		window:   opts.HistoryWindow,
		maxTurns: opts.MaxTurns,
	}
}

// MaxTurns is the per-session slot budget.
func (e *Engine) MaxTurns() int {
	return e.maxTurns
}

// TurnError reports a generation attempt that failed at the backend or its configuration.
// Step has already consumed the slot when it returns one.
type TurnError struct {
	Speaker persona.ID
	Slot    int
	Err     error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s turn %d: %v", e.Speaker, e.Slot, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// Marker is the transcript-level line shown to viewers in place of the skipped turn.
func (e *TurnError) Marker() string {
	return fmt.Sprintf("[Error getting response from %s: %s]", e.Speaker, e.Err)
}

// AdvanceTurn generates, sanitizes and appends the next persona's turn. On any failure the
// transcript, turn index and slot are left untouched and the error is returned as is.
func (e *Engine) AdvanceTurn(ctx context.Context, s *Session) (debate.Turn, error) {
	if !s.step.TryLock() {
		return debate.Turn{}, ErrSessionBusy
	}
	defer s.step.Unlock()

	turn, _, err := e.advance(ctx, s)
	return turn, err
}

// Step is AdvanceTurn under the skip-and-advance policy: a backend or configuration failure
// consumes its rotation slot without appending anything and comes back as *TurnError, so the
// next call schedules the next persona. Stop, cancellation and closed sessions consume nothing.
func (e *Engine) Step(ctx context.Context, s *Session) (debate.Turn, error) {
	if !s.step.TryLock() {
		return debate.Turn{}, ErrSessionBusy
	}
	defer s.step.Unlock()

	turn, p, err := e.advance(ctx, s)
	if err == nil || !skippable(err) {
		return turn, err
	}

	if skipErr := s.skip(p, e.maxTurns); skipErr != nil {
		return debate.Turn{}, skipErr
	}
	log.Printf("[debate] session=%s skipped %s at slot %d: %v", s.id, p.speaker, p.slot, err)
	return debate.Turn{}, &TurnError{Speaker: p.speaker, Slot: p.slot, Err: err}
}

func (e *Engine) advance(ctx context.Context, s *Session) (debate.Turn, turnPlan, error) {
	p, err := s.plan(e.window, e.maxTurns)
	if err != nil {
		return debate.Turn{}, p, err
	}

	gen, err := e.backends.Generator(p.speaker)
	if err != nil {
		return debate.Turn{}, p, err
	}

	prompt, err := e.prompts.Build(ctx, ai.PromptInput{
		Speaker:  p.speaker,
		Topic:    p.topic,
		History:  p.history,
		LastLine: p.lastLine,
	})
	if err != nil {
		return debate.Turn{}, p, err
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-callCtx.Done():
		}
	}()

	raw, err := gen.Generate(callCtx, prompt)
	if err != nil {
		if s.State().Terminal() {
			return debate.Turn{}, p, ErrSessionStopped
		}
		return debate.Turn{}, p, err
	}

	text := sanitize.Clean(raw, p.speaker)
	if text == "" {
		return debate.Turn{}, p, &backend.BackendError{Provider: p.speaker.Tag(), Message: "reply was empty after sanitizing"}
	}

	turn := debate.NewTurn(p.speaker, text)
	turnIndex, err := s.commit(p, turn, e.maxTurns)
	if err != nil {
		if errors.Is(err, ErrSessionStopped) {
			log.Printf("[debate] session=%s discarded %s reply after stop", s.id, p.speaker)
		}
		return debate.Turn{}, p, err
	}

	log.Printf("[debate] session=%s turn=%d speaker=%s length=%d", s.id, turnIndex, p.speaker, len(text))
	return turn, p, nil
}

func skippable(err error) bool {
	var backendErr *backend.BackendError
	var cfgErr *backend.ConfigurationError
	return errors.As(err, &backendErr) || errors.As(err, &cfgErr)
}
