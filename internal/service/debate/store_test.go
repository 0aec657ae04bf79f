package debate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
)

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	s, err := store.Create(ctx, "  Cats vs dogs ", debate.DefaultRotation())
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	got, err := store.Get(ctx, s.ID())
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	snap := got.Snapshot()
	if snap.Topic() != "Cats vs dogs" {
		t.Fatalf("unexpected topic %q", snap.Topic())
	}
	if snap.State != debate.StateIdle || snap.TurnIndex != 0 {
		t.Fatalf("unexpected fresh session %+v", snap)
	}
	if snap.Transcript[0].Speaker != persona.Grok {
		t.Fatalf("expected GROK seed, got %s", snap.Transcript[0].Speaker)
	}
}

func TestStoreCreateRequiresTopic(t *testing.T) {
	if _, err := NewStore().Create(context.Background(), "   ", debate.DefaultRotation()); !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("expected ErrTopicRequired, got %v", err)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	if _, err := NewStore().Get(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreResumeWithoutHistoryFails(t *testing.T) {
	store := NewStore()
	if _, err := store.Resume(context.Background(), "missing", nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if got := len(store.List(context.Background())); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}

func TestStoreResumeRebuildsFromHistory(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	lines := []string{
		"GROK: Cats vs dogs",
		"CLAUDE: Cats are independent.",
	}

	s, err := store.Resume(ctx, "client-1", lines)
	if err != nil {
		t.Fatalf("Resume err: %v", err)
	}
	snap := s.Snapshot()
	if snap.ID != "client-1" || snap.TurnIndex != 1 || snap.Slot != 1 {
		t.Fatalf("unexpected resumed snapshot %+v", snap)
	}

	engine := newTestEngine(allReplying(), 0)
	turn, err := engine.Step(ctx, s)
	if err != nil {
		t.Fatalf("Step err: %v", err)
	}
	if turn.Speaker != persona.ChatGPT {
		t.Fatalf("expected CHATGPT next, got %s", turn.Speaker)
	}

	again, err := store.Resume(ctx, "client-1", nil)
	if err != nil {
		t.Fatalf("second Resume err: %v", err)
	}
	if again != s {
		t.Fatal("expected stored session to be reused")
	}
}

func TestStoreResumeRejectsUnknownSpeaker(t *testing.T) {
	_, err := NewStore().Resume(context.Background(), "", []string{"HAL: open the pod bay doors"})
	var unknown *persona.UnknownPersonaError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownPersonaError, got %v", err)
	}
}

func TestStoreStop(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	s, _ := store.Create(ctx, "Cats vs dogs", debate.DefaultRotation())

	snap, err := store.Stop(ctx, s.ID())
	if err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	if snap.State != debate.StateStopped {
		t.Fatalf("expected stopped, got %s", snap.State)
	}
	if _, err := store.Stop(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStorePrune(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	old, _ := store.Create(ctx, "old", debate.DefaultRotation())
	fresh, _ := store.Create(ctx, "fresh", debate.DefaultRotation())

	old.mu.Lock()
	old.updatedAt = time.Now().Add(-2 * time.Hour)
	old.mu.Unlock()

	if removed := store.Prune(ctx, time.Hour); len(removed) != 1 || removed[0] != old.ID() {
		t.Fatalf("expected old session pruned, got %v", removed)
	}
	if _, err := store.Get(ctx, old.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old session gone, got %v", err)
	}
	if old.State() != debate.StateStopped {
		t.Fatalf("expected pruned session stopped, got %s", old.State())
	}
	if _, err := store.Get(ctx, fresh.ID()); err != nil {
		t.Fatalf("fresh session pruned: %v", err)
	}
}
