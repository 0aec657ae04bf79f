package debate

import (
	"sync"
	"time"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

// Session is the live, lockable state behind one debate. The store owns it; the engine
// borrows it one step at a time.
type Session struct {
	id string

	// step serialises turns; held for the whole of one AdvanceTurn.
	step sync.Mutex

	mu         sync.Mutex
	transcript []debate.Turn
	turnIndex  int
	slot       int
	state      debate.State
	rotation   debate.Rotation
	createdAt  time.Time
	updatedAt  time.Time

	done     chan struct{}
	doneOnce sync.Once
}

func newSession(id string, rotation debate.Rotation, transcript []debate.Turn) *Session {
	now := time.Now().UTC()
	generated := len(transcript) - 1
	if generated < 0 {
		generated = 0
	}
	return &Session{
		id:         id,
		transcript: transcript,
		turnIndex:  generated,
		slot:       generated,
		state:      debate.StateIdle,
		rotation:   rotation,
		createdAt:  now,
		updatedAt:  now,
		done:       make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State reports the current lifecycle stage.
func (s *Session) State() debate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot copies the session for callers outside the package.
func (s *Session) Snapshot() debate.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript := make([]debate.Turn, len(s.transcript))
	copy(transcript, s.transcript)
	order := make([]persona.ID, len(s.rotation.Order))
	copy(order, s.rotation.Order)

	return debate.Snapshot{
		ID:         s.id,
		Transcript: transcript,
		TurnIndex:  s.turnIndex,
		Slot:       s.slot,
		State:      s.state,
		Rotation:   debate.Rotation{Seed: s.rotation.Seed, Order: order},
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
}

// Stop moves a non-terminal session to stopped. It reports whether this call made the
// transition.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.finishLocked(debate.StateStopped)
	return true
}

func (s *Session) finishLocked(state debate.State) {
	s.state = state
	s.updatedAt = time.Now().UTC()
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// turnPlan is everything one generation attempt needs, read under the session lock.
type turnPlan struct {
	speaker  persona.ID
	slot     int
	topic    string
	history  []string
	lastLine string
}

// plan checks the session may schedule another slot and captures its inputs. The session
// flips to running on the first plan and to exhausted once the budget is spent.
func (s *Session) plan(window, maxTurns int) (turnPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return turnPlan{}, ErrSessionClosed
	}
	if len(s.transcript) == 0 {
		return turnPlan{}, ErrEmptyTranscript
	}
	if maxTurns > 0 && s.slot >= maxTurns {
		s.finishLocked(debate.StateExhausted)
		return turnPlan{}, ErrSessionClosed
	}
	if s.state == debate.StateIdle {
		s.state = debate.StateRunning
	}

	start := 0
	if window > 0 && len(s.transcript) > window {
		start = len(s.transcript) - window
	}

	return turnPlan{
		speaker:  s.rotation.Speaker(s.slot),
		slot:     s.slot,
		topic:    s.transcript[0].Text,
		history:  debate.Lines(s.transcript[start:]),
		lastLine: s.transcript[len(s.transcript)-1].Line(),
	}, nil
}

// commit appends a generated turn for the planned slot. A session stopped while the
// backend call was in flight drops the result.
func (s *Session) commit(p turnPlan, turn debate.Turn, maxTurns int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return s.turnIndex, ErrSessionStopped
	}
	if s.slot != p.slot {
		return s.turnIndex, ErrSessionBusy
	}

	s.transcript = append(s.transcript, turn)
	s.turnIndex++
	s.advanceLocked(maxTurns)
	return s.turnIndex, nil
}

// skip consumes the planned slot without touching the transcript.
func (s *Session) skip(p turnPlan, maxTurns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return ErrSessionStopped
	}
	if s.slot != p.slot {
		return ErrSessionBusy
	}
	s.advanceLocked(maxTurns)
	return nil
}

func (s *Session) advanceLocked(maxTurns int) {
	s.slot++
	s.updatedAt = time.Now().UTC()
	if maxTurns > 0 && s.slot >= maxTurns {
		s.finishLocked(debate.StateExhausted)
	}
}
