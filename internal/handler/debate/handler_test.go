package debate

import (
	"bytes"
	"context"
	"encoding/json"
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

type fixedReply string

func (f fixedReply) Generate(context.Context, string) (string, error) { return string(f), nil }

type failing struct{ status int }

func (f failing) Generate(context.Context, string) (string, error) {
	return "", &backend.BackendError{Provider: "test", StatusCode: f.status, Message: "upstream failed"}
}

type backends map[persona.ID]backend.Generator

func (b backends) Generator(id persona.ID) (backend.Generator, error) {
	if g, ok := b[id]; ok {
		return g, nil
	}
	return nil, &backend.ConfigurationError{Provider: id.Tag(), Message: "CLAUDE_API_KEY is not set"}
}

func setupRouter(b backends) *chi.Mux {
	prompts := ai.NewPromptBuilder(persona.NewMemoryStore(persona.Seed()))
	engine := debateService.NewEngine(b, prompts, debateService.Options{})
	svc := debateService.NewService(debateService.NewStore(), engine, debateService.ServiceOptions{})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) turnResponse {
	t.Helper()
	var out turnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return out
}

func allBackends() backends {
	return backends{
		persona.Claude:   fixedReply("Cats are independent."),
		persona.ChatGPT:  fixedReply("Dogs, obviously."),
		persona.DeepSeek: fixedReply("Data says dogs."),
		persona.Grok:     fixedReply("Get a fish."),
	}
}

func TestCreateDebate(t *testing.T) {
	r := setupRouter(allBackends())

	resp := do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "Cats vs dogs"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decode(t, resp)
	if out.SessionID == "" || out.Turn != "GROK: Cats vs dogs" || out.PersonaTag != "grok" {
		t.Fatalf("unexpected create response %+v", out)
	}
}

func TestCreateDebateMissingTopic(t *testing.T) {
	r := setupRouter(allBackends())
	if resp := do(t, r, http.MethodPost, "/debates", map[string]any{"topic": " "}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateDebateUnknownRotation(t *testing.T) {
	r := setupRouter(allBackends())
	resp := do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "x", "rotation": []string{"CLAUDE", "HAL"}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTurnsFollowRotation(t *testing.T) {
	r := setupRouter(allBackends())
	created := decode(t, do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "Cats vs dogs"}))

	var last turnResponse
	for i := 0; i < 4; i++ {
		resp := do(t, r, http.MethodPost, "/debates/"+created.SessionID+"/turns", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("turn %d: expected 200, got %d: %s", i, resp.Code, resp.Body.String())
		}
		last = decode(t, resp)
	}

	want := []string{
		"GROK: Cats vs dogs",
		"CLAUDE: Cats are independent.",
		"CHATGPT: Dogs, obviously.",
		"DEEPSEEK: Data says dogs.",
		"GROK: Get a fish.",
	}
	if strings.Join(last.Transcript, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected transcript:\n%s", strings.Join(last.Transcript, "\n"))
	}
	if last.TurnCount != 4 || last.PersonaTag != "grok" {
		t.Fatalf("unexpected final turn %+v", last)
	}
}

func TestTurnUnknownSessionWithoutHistory(t *testing.T) {
	r := setupRouter(allBackends())
	resp := do(t, r, http.MethodPost, "/debates/missing/turns", map[string]any{})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestTurnResumesFromHistory(t *testing.T) {
	r := setupRouter(allBackends())
	resp := do(t, r, http.MethodPost, "/debates/client-42/turns", map[string]any{
		"history": []string{"GROK: Cats vs dogs", "CLAUDE: Cats are independent."},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decode(t, resp)
	if out.SessionID != "client-42" || out.Turn != "CHATGPT: Dogs, obviously." {
		t.Fatalf("unexpected resumed turn %+v", out)
	}
}

func TestTurnMalformedHistory(t *testing.T) {
	r := setupRouter(allBackends())
	resp := do(t, r, http.MethodPost, "/debates/x/turns", map[string]any{"history": []string{"no speaker here"}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTurnBackendFailureReturnsMarker(t *testing.T) {
	b := allBackends()
	b[persona.Claude] = failing{status: 500}
	r := setupRouter(b)
	created := decode(t, do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "Cats vs dogs"}))

	resp := do(t, r, http.MethodPost, "/debates/"+created.SessionID+"/turns", nil)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	out := decode(t, resp)
	if !strings.HasPrefix(out.Marker, "[Error getting response from CLAUDE:") {
		t.Fatalf("unexpected marker %q", out.Marker)
	}
	if len(out.Transcript) != 1 {
		t.Fatalf("failed turn changed transcript: %v", out.Transcript)
	}

	next := decode(t, do(t, r, http.MethodPost, "/debates/"+created.SessionID+"/turns", nil))
	if next.PersonaTag != "chatgpt" {
		t.Fatalf("expected CHATGPT after skipped CLAUDE, got %+v", next)
	}
}

func TestTurnMissingCredential(t *testing.T) {
	b := allBackends()
	delete(b, persona.Claude)
	r := setupRouter(b)
	created := decode(t, do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "Cats vs dogs"}))

	resp := do(t, r, http.MethodPost, "/debates/"+created.SessionID+"/turns", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestStopDebate(t *testing.T) {
	r := setupRouter(allBackends())
	created := decode(t, do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "Cats vs dogs"}))

	resp := do(t, r, http.MethodDelete, "/debates/"+created.SessionID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if out := decode(t, resp); out.State != "stopped" {
		t.Fatalf("expected stopped, got %s", out.State)
	}

	if resp := do(t, r, http.MethodPost, "/debates/"+created.SessionID+"/turns", nil); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 after stop, got %d", resp.Code)
	}
	if resp := do(t, r, http.MethodDelete, "/debates/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGetDebate(t *testing.T) {
	r := setupRouter(allBackends())
	created := decode(t, do(t, r, http.MethodPost, "/debates", map[string]any{"topic": "Cats vs dogs"}))

	resp := do(t, r, http.MethodGet, "/debates/"+created.SessionID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var snap struct {
		SessionID string `json:"sessionId"`
		State     string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if snap.SessionID != created.SessionID || snap.State != "idle" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
