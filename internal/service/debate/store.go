package debate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
)

var (
	ErrTopicRequired   = errors.New("topic is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionStopped  = errors.New("session stopped")
	ErrSessionBusy     = errors.New("session is already generating a turn")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Store keeps debate sessions in process memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore bootstraps an empty in-memory session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create opens a session whose transcript is the seed persona voicing the topic.
func (s *Store) Create(_ context.Context, topic string, rotation debate.Rotation) (*Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if len(rotation.Order) == 0 {
		rotation = debate.DefaultRotation()
	}

	session := newSession(uuid.NewString(), rotation, []debate.Turn{debate.NewTurn(rotation.Seed, topic)})

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by identifier.
func (s *Store) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Resume returns the stored session, or rebuilds one under id from client-held transcript
// lines when the store has none. With neither it fails with ErrSessionNotFound.
func (s *Store) Resume(ctx context.Context, id string, lines []string) (*Session, error) {
	if id != "" {
		if session, err := s.Get(ctx, id); err == nil {
			return session, nil
		}
	}
	if len(lines) == 0 {
		return nil, ErrSessionNotFound
	}

	turns := make([]debate.Turn, 0, len(lines))
	for _, line := range lines {
		turn, err := debate.ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("resume transcript: %w", err)
		}
		turns = append(turns, turn)
	}
	if turns[0].Text == "" {
		return nil, ErrTopicRequired
	}

	if id == "" {
		id = uuid.NewString()
	}

	rotation := debate.DefaultRotation()
	rotation.Seed = turns[0].Speaker
	session := newSession(id, rotation, turns)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have rebuilt the same id first.
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	s.sessions[id] = session
	return session, nil
}

// Stop halts the session and returns its final snapshot.
func (s *Store) Stop(ctx context.Context, id string) (debate.Snapshot, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return debate.Snapshot{}, err
	}
	session.Stop()
	return session.Snapshot(), nil
}

// List returns snapshots of every session, oldest first.
func (s *Store) List(_ context.Context) []debate.Snapshot {
	s.mu.RLock()
	snapshots := make([]debate.Snapshot, 0, len(s.sessions))
	for _, session := range s.sessions {
		snapshots = append(snapshots, session.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots
}

// Prune stops and forgets sessions untouched for longer than idle, returning their ids.
func (s *Store) Prune(_ context.Context, idle time.Duration) []string {
	if idle <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, session := range s.sessions {
		if session.lastActive().Before(cutoff) {
			session.Stop()
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
