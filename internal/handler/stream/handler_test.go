package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
	"github.com/zhouzirui/z-debate/backend/internal/service/ai"
	"github.com/zhouzirui/z-debate/backend/internal/service/backend"
	debateService "github.com/zhouzirui/z-debate/backend/internal/service/debate"
)

type noBackends struct{}

func (noBackends) Generator(id persona.ID) (backend.Generator, error) {
	return nil, &backend.ConfigurationError{Provider: id.Tag(), Message: "not configured"}
}

func setup() (*chi.Mux, *debateService.Service) {
	prompts := ai.NewPromptBuilder(persona.NewMemoryStore(persona.Seed()))
	engine := debateService.NewEngine(noBackends{}, prompts, debateService.Options{})
	svc := debateService.NewService(debateService.NewStore(), engine, debateService.ServiceOptions{})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, svc
}

func TestEventsReplayFinishedSession(t *testing.T) {
	r, svc := setup()
	ctx := context.Background()

	session, err := svc.Start(ctx, "Cats vs dogs", nil)
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	svc.Announce(ctx, session)
	if _, _, err := svc.Continue(ctx, session.ID(), nil); err == nil {
		t.Fatal("expected configuration failure")
	}
	if _, err := svc.Stop(ctx, session.ID()); err != nil {
		t.Fatalf("Stop err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debates/"+session.ID()+"/events", nil))

	body := resp.Body.String()
	wants := []string{
		"event: message\ndata: ",
		`"text":"GROK: Cats vs dogs"`,
		"event: error\ndata: ",
		"[Error getting response from CLAUDE: ",
		"event: session-ended\ndata: ",
		"event: done\n",
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q:\n%s", want, body)
		}
	}
	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestEventsUnknownSession(t *testing.T) {
	r, _ := setup()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debates/missing/events", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
