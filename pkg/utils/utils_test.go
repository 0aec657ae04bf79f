package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondError(t *testing.T) {
	resp := httptest.NewRecorder()
	RespondError(resp, http.StatusNotFound, "session not found")

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body["error"] != "session not found" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestSendSSEEvent(t *testing.T) {
	resp := httptest.NewRecorder()
	SetupSSEHeaders(resp)
	if err := SendSSEEvent(resp, resp, "message", map[string]string{"text": "GROK: hi"}); err != nil {
		t.Fatalf("SendSSEEvent err: %v", err)
	}

	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := resp.Body.String()
	if !strings.HasPrefix(body, "event: message\ndata: {\"text\":\"GROK: hi\"}\n\n") {
		t.Fatalf("unexpected frame %q", body)
	}
	if !resp.Flushed {
		t.Fatal("expected flush")
	}
}
