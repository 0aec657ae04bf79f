package debate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
)

func TestBroadcasterReplaysHistoryToLateSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ctx := context.Background()
	_ = b.Send(ctx, debate.Event{Type: debate.EventMessage, Text: "GROK: Cats vs dogs"})
	_ = b.Send(ctx, debate.Event{Type: debate.EventMessage, Text: "CLAUDE: Cats."})

	events, done, unsub := b.Subscribe()
	defer unsub()

	for _, want := range []string{"GROK: Cats vs dogs", "CLAUDE: Cats."} {
		ev := <-events
		if ev.Text != want {
			t.Fatalf("replay: got %q want %q", ev.Text, want)
		}
	}

	_ = b.Send(ctx, debate.Event{Type: debate.EventSessionEnded, State: debate.StateStopped})
	if ev := <-events; ev.Type != debate.EventSessionEnded {
		t.Fatalf("expected session-ended, got %+v", ev)
	}
	if _, ok := <-events; ok {
		t.Fatal("expected channel closed after session-ended")
	}
	select {
	case <-done:
	default:
		t.Fatal("expected done closed")
	}
}

func TestBroadcasterSubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster()
	_ = b.Send(context.Background(), debate.Event{Type: debate.EventMessage, Text: "GROK: hi"})
	b.Close()

	events, _, unsub := b.Subscribe()
	defer unsub()
	if ev, ok := <-events; !ok || ev.Text != "GROK: hi" {
		t.Fatalf("expected replay after close, got %+v ok=%v", ev, ok)
	}
	if _, ok := <-events; ok {
		t.Fatal("expected closed channel")
	}
}

func TestHubReusesBroadcaster(t *testing.T) {
	h := NewHub()
	a := h.For("s1")
	if h.For("s1") != a {
		t.Fatal("expected same broadcaster for same session")
	}
	h.Remove("s1")
	if _, ok := h.Lookup("s1"); ok {
		t.Fatal("expected broadcaster removed")
	}
}

func TestScriptLogAppendsPersistedLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	l, err := NewScriptLog(dir)
	if err != nil {
		t.Fatalf("NewScriptLog err: %v", err)
	}
	ctx := context.Background()
	_ = l.Send(ctx, debate.Event{SessionID: "s1", Text: "GROK: Cats vs dogs", ShouldPersist: true})
	_ = l.Send(ctx, debate.Event{SessionID: "s1", Text: "ignored", ShouldPersist: false})
	_ = l.Send(ctx, debate.Event{SessionID: "s1", Text: "[Error getting response from CLAUDE: boom]", ShouldPersist: true})

	data, err := os.ReadFile(l.Path("s1"))
	if err != nil {
		t.Fatalf("ReadFile err: %v", err)
	}
	want := "GROK: Cats vs dogs\n[Error getting response from CLAUDE: boom]\n"
	if string(data) != want {
		t.Fatalf("unexpected script:\n%q", data)
	}
}

func TestScriptLogDisabled(t *testing.T) {
	l, err := NewScriptLog("")
	if err != nil || l != nil {
		t.Fatalf("expected nil log, got %v %v", l, err)
	}
	if err := l.Send(context.Background(), debate.Event{Text: "x", ShouldPersist: true}); err != nil {
		t.Fatalf("nil log Send err: %v", err)
	}
}
