package debate

import (
	"time"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

// State is the lifecycle stage of a debate session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateExhausted State = "exhausted"
)

// Terminal reports whether no further turns may be scheduled.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateExhausted
}

// Rotation is the fixed speaking order. Seed opens the transcript with the user's topic
// and is not generated by a backend.
type Rotation struct {
	Seed  persona.ID   `json:"seed"`
	Order []persona.ID `json:"order"`
}

// DefaultRotation starts with GROK voicing the topic, then cycles the four personas.
func DefaultRotation() Rotation {
	return Rotation{
		Seed:  persona.Grok,
		Order: []persona.ID{persona.Claude, persona.ChatGPT, persona.DeepSeek, persona.Grok},
	}
}

// NewRotation builds a rotation from client-supplied names. An empty list yields the default.
// The seed is the last persona of the order so it never speaks twice in a row.
func NewRotation(names []string) (Rotation, error) {
	if len(names) == 0 {
		return DefaultRotation(), nil
	}
	order := make([]persona.ID, 0, len(names))
	for _, name := range names {
		id, err := persona.Parse(name)
		if err != nil {
			return Rotation{}, err
		}
		order = append(order, id)
	}
	return Rotation{Seed: order[len(order)-1], Order: order}, nil
}

// Speaker returns who holds the given zero-based rotation slot.
func (r Rotation) Speaker(slot int) persona.ID {
	return r.Order[slot%len(r.Order)]
}

// Snapshot is a read-only copy of a session handed to callers outside the store.
type Snapshot struct {
	ID         string    `json:"sessionId"`
	Transcript []Turn    `json:"transcript"`
	TurnIndex  int       `json:"turnIndex"`
	Slot       int       `json:"slot"`
	State      State     `json:"state"`
	Rotation   Rotation  `json:"rotation"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Topic is the seed line's payload.
func (s Snapshot) Topic() string {
	if len(s.Transcript) == 0 {
		return ""
	}
	return s.Transcript[0].Text
}
