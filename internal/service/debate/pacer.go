package debate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
)

const (
	DefaultTurnDelay = 2 * time.Second

	busyRetryInterval = 50 * time.Millisecond
)

// Sink receives the events of a paced run.
type Sink interface {
	Send(ctx context.Context, event debate.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event debate.Event) error

func (f SinkFunc) Send(ctx context.Context, event debate.Event) error {
	return f(ctx, event)
}

// Sinks fans every event out to all targets and joins their errors.
func Sinks(targets ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, event debate.Event) error {
		var errs []error
		for _, t := range targets {
			if t == nil {
				continue
			}
			if err := t.Send(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// PacerOptions tune a pacer; zero TurnDelay uses DefaultTurnDelay, negative disables it.
// AckTimeout of zero waits for acknowledgment without a ceiling.
type PacerOptions struct {
	TurnDelay  time.Duration
	AckTimeout time.Duration
}

// Pacer turns the engine's one-step contract into a live stream: each delivered line must be
// acknowledged by the viewer, and turns are never closer than the turn delay.
type Pacer struct {
	engine     *Engine
	delay      time.Duration
	ackTimeout time.Duration
	ack        chan struct{}
}

// NewPacer creates a pacer for one viewer.
func NewPacer(engine *Engine, opts PacerOptions) *Pacer {
	delay := opts.TurnDelay
	if delay == 0 {
		delay = DefaultTurnDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Pacer{
		engine:     engine,
		delay:      delay,
		ackTimeout: opts.AckTimeout,
		ack:        make(chan struct{}, 1),
	}
}

// Acknowledge signals the viewer finished presenting the last line.
func (p *Pacer) Acknowledge() {
	select {
	case p.ack <- struct{}{}:
	default:
	}
}

// Run drives s until it is stopped, exhausted or ctx ends, then emits session-ended. A fresh
// session has its seed line delivered first. Sink failures stop the session.
func (p *Pacer) Run(ctx context.Context, s *Session, sink Sink) (debate.State, error) {
	var runErr error
	defer func() {
		if err := sink.Send(context.WithoutCancel(ctx), endedEvent(s.Snapshot())); err != nil {
			log.Printf("[debate] session=%s session-ended not delivered: %v", s.ID(), err)
		}
	}()

	p.drainAck()

	snap := s.Snapshot()
	if len(snap.Transcript) == 1 && snap.Slot == 0 {
		if err := sink.Send(ctx, debate.MessageEvent(s.ID(), snap.Transcript[0], 0)); err != nil {
			s.Stop()
			return s.State(), fmt.Errorf("deliver seed line: %w", err)
		}
	}

	awaitingAck := false
	for {
		if s.State().Terminal() {
			break
		}
		if awaitingAck {
			if err := p.waitAck(ctx, s); err != nil {
				runErr = err
				break
			}
		}
		if err := p.pause(ctx, s); err != nil {
			runErr = err
			break
		}

		turn, err := p.engine.Step(ctx, s)
		if err != nil {
			var turnErr *TurnError
			if errors.As(err, &turnErr) {
				awaitingAck = false
				if sendErr := sink.Send(ctx, errorEvent(s, turnErr)); sendErr != nil {
					s.Stop()
					runErr = sendErr
					break
				}
				continue
			}
			if errors.Is(err, ErrSessionBusy) {
				// 另一个调用方（REST）正在生成这一轮，等它释放后重试
				if err := p.waitIdle(ctx, s); err != nil {
					runErr = err
					break
				}
				continue
			}
			if !errors.Is(err, ErrSessionClosed) && !errors.Is(err, ErrSessionStopped) {
				s.Stop()
				runErr = err
			}
			break
		}

		p.drainAck()
		if err := sink.Send(ctx, debate.MessageEvent(s.ID(), turn, s.Snapshot().TurnIndex)); err != nil {
			s.Stop()
			runErr = err
			break
		}
		awaitingAck = true
	}

	switch {
	case errors.Is(runErr, ErrSessionStopped):
		runErr = nil
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		s.Stop()
		runErr = nil
	}
	return s.State(), runErr
}

func (p *Pacer) drainAck() {
	select {
	case <-p.ack:
	default:
	}
}

func (p *Pacer) waitAck(ctx context.Context, s *Session) error {
	var timeout <-chan time.Time
	if p.ackTimeout > 0 {
		timer := time.NewTimer(p.ackTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-p.ack:
		return nil
	case <-timeout:
		log.Printf("[debate] session=%s no acknowledgment within %s, continuing", s.ID(), p.ackTimeout)
		return nil
	case <-s.Done():
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitIdle backs off while another caller holds the session's step lock.
func (p *Pacer) waitIdle(ctx context.Context, s *Session) error {
	timer := time.NewTimer(busyRetryInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-s.Done():
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pacer) pause(ctx context.Context, s *Session) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-s.Done():
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errorEvent(s *Session, turnErr *TurnError) debate.Event {
	return debate.Event{
		Type:          debate.EventError,
		SessionID:     s.ID(),
		Text:          turnErr.Marker(),
		PersonaTag:    "error",
		ShouldPersist: true,
		TurnIndex:     s.Snapshot().TurnIndex,
	}
}

func endedEvent(snap debate.Snapshot) debate.Event {
	return debate.Event{
		Type:      debate.EventSessionEnded,
		SessionID: snap.ID,
		State:     snap.State,
		TurnIndex: snap.TurnIndex,
	}
}
