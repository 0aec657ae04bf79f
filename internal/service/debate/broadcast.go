package debate

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
)

// Broadcaster fans one session's events out to spectators. Late subscribers get a replay of
// everything sent so far. Thread-safe.
type Broadcaster struct {
	mu      sync.Mutex
	history []debate.Event
	clients map[uint64]chan debate.Event
	nextID  uint64
	closed  bool
	doneCh  chan struct{}
}

// NewBroadcaster creates an open broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[uint64]chan debate.Event),
		doneCh:  make(chan struct{}),
	}
}

// Send records the event and pushes it to every subscriber; it never blocks on a slow
// spectator, which is dropped instead. A session-ended event closes the broadcaster.
func (b *Broadcaster) Send(_ context.Context, ev debate.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.history = append(b.history, ev)
	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(b.clients, id)
		}
	}
	if ev.Type == debate.EventSessionEnded {
		b.closeLocked()
	}
	return nil
}

// Subscribe returns the event channel, a channel closed when the broadcaster finishes, and
// an unsubscribe func. The done channel is not closed when a slow client is dropped.
func (b *Broadcaster) Subscribe() (<-chan debate.Event, <-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan debate.Event, len(b.history)+64)
	for _, ev := range b.history {
		ch <- ev
	}

	if b.closed {
		close(ch)
		return ch, b.doneCh, func() {}
	}

	id := b.nextID
	b.nextID++
	b.clients[id] = ch
	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[id]; ok {
			delete(b.clients, id)
			close(ch)
		}
	}
	return ch, b.doneCh, unsub
}

// Close ends the stream for every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Broadcaster) closeLocked() {
	if b.closed {
		return
	}
	b.closed = true
	close(b.doneCh)
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// History returns a copy of every event received so far.
func (b *Broadcaster) History() []debate.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]debate.Event, len(b.history))
	copy(out, b.history)
	return out
}

// Hub keeps one broadcaster per session id.
type Hub struct {
	mu     sync.Mutex
	boards map[string]*Broadcaster
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{boards: make(map[string]*Broadcaster)}
}

// For returns the session's broadcaster, creating it on first use.
func (h *Hub) For(sessionID string) *Broadcaster {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[sessionID]
	if !ok {
		b = NewBroadcaster()
		h.boards[sessionID] = b
	}
	return b
}

// Lookup returns the session's broadcaster if one exists.
func (h *Hub) Lookup(sessionID string) (*Broadcaster, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[sessionID]
	return b, ok
}

// Remove closes and forgets the session's broadcaster.
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	b, ok := h.boards[sessionID]
	delete(h.boards, sessionID)
	h.mu.Unlock()
	if ok {
		b.Close()
	}
}
