package debate

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
)

// Service ties the store, the engine and event delivery together for the handlers.
type Service struct {
	store  *Store
	engine *Engine
	hub    *Hub
	script *ScriptLog
	pacing PacerOptions
}

// ServiceOptions carries the optional parts of a Service.
type ServiceOptions struct {
	Pacing PacerOptions
	Script *ScriptLog
}

// NewService wires a debate service.
func NewService(store *Store, engine *Engine, opts ServiceOptions) *Service {
	return &Service{
		store:  store,
		engine: engine,
		hub:    NewHub(),
		script: opts.Script,
		pacing: opts.Pacing,
	}
}

// Store exposes the underlying session store.
func (s *Service) Store() *Store {
	return s.store
}

// Hub exposes the spectator broadcasters.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Start creates a session for topic. An empty rotation uses the default order.
func (s *Service) Start(ctx context.Context, topic string, rotation []string) (*Session, error) {
	rot, err := debate.NewRotation(rotation)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Create(ctx, topic, rot)
	if err != nil {
		return nil, err
	}
	log.Printf("[debate] session=%s created seed=%s order=%v", session.ID(), rot.Seed, rot.Order)
	return session, nil
}

// Announce publishes the seed line to spectators and the script log.
func (s *Service) Announce(ctx context.Context, session *Session) {
	snap := session.Snapshot()
	if len(snap.Transcript) == 0 {
		return
	}
	s.publish(ctx, debate.MessageEvent(snap.ID, snap.Transcript[0], 0))
}

// NewPacer returns a pacer configured for live viewers.
func (s *Service) NewPacer() *Pacer {
	return NewPacer(s.engine, s.pacing)
}

// Deliver combines a viewer's own sink with the spectator and script sinks of the session.
func (s *Service) Deliver(sessionID string, viewer Sink) Sink {
	return Sinks(viewer, s.spectators(sessionID), s.script)
}

// spectators returns the session's broadcaster, or nil once the session has left the store
// so a pruned session never gets a fresh one.
func (s *Service) spectators(sessionID string) Sink {
	if _, err := s.store.Get(context.Background(), sessionID); err != nil {
		return nil
	}
	return s.hub.For(sessionID)
}

// Continue resolves the session (falling back to client history), then runs one step under
// the skip-and-advance policy. Every outcome is published to spectators.
func (s *Service) Continue(ctx context.Context, id string, history []string) (debate.Turn, debate.Snapshot, error) {
	session, err := s.store.Resume(ctx, id, history)
	if err != nil {
		return debate.Turn{}, debate.Snapshot{}, err
	}

	turn, err := s.engine.Step(ctx, session)
	if err != nil {
		var turnErr *TurnError
		if errors.As(err, &turnErr) {
			s.publish(ctx, errorEvent(session, turnErr))
			s.publishIfEnded(ctx, session.Snapshot())
		}
		return debate.Turn{}, session.Snapshot(), err
	}

	snap := session.Snapshot()
	s.publish(ctx, debate.MessageEvent(snap.ID, turn, snap.TurnIndex))
	s.publishIfEnded(ctx, snap)
	return turn, snap, nil
}

// Stop halts a session and tells spectators it ended.
func (s *Service) Stop(ctx context.Context, id string) (debate.Snapshot, error) {
	snap, err := s.store.Stop(ctx, id)
	if err != nil {
		return snap, err
	}
	s.publishIfEnded(ctx, snap)
	log.Printf("[debate] session=%s stopped after %d turns", id, snap.TurnIndex)
	return snap, nil
}

// Prune forgets idle sessions and closes their spectator streams.
func (s *Service) Prune(ctx context.Context, idle time.Duration) int {
	removed := s.store.Prune(ctx, idle)
	for _, id := range removed {
		s.hub.Remove(id)
	}
	if len(removed) > 0 {
		log.Printf("[debate] pruned %d idle sessions", len(removed))
	}
	return len(removed)
}

func (s *Service) publish(ctx context.Context, ev debate.Event) {
	if err := Sinks(s.spectators(ev.SessionID), s.script).Send(ctx, ev); err != nil {
		log.Printf("[debate] session=%s publish %s failed: %v", ev.SessionID, ev.Type, err)
	}
}

func (s *Service) publishIfEnded(ctx context.Context, snap debate.Snapshot) {
	if snap.State.Terminal() {
		s.publish(ctx, endedEvent(snap))
	}
}
