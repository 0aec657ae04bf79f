package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	debateService "github.com/zhouzirui/z-debate/backend/internal/service/debate"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler streams a debate to spectators via Server-Sent Events
type Handler struct {
	debates   *debateService.Service
	heartbeat time.Duration
}

// New creates a new stream handler
func New(debates *debateService.Service) *Handler {
	return &Handler{debates: debates, heartbeat: defaultHeartbeat}
}

// RegisterRoutes mounts the spectator stream.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/debates/{sessionID}/events", h.handleEvents)
}

// handleEvents replays everything the session has produced, then follows it live until
// session-ended or the client goes away.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if _, err := h.debates.Store().Get(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, done, unsubscribe := h.debates.Hub().For(sessionID).Subscribe()
	defer unsubscribe()

	log.Printf("[stream] spectator joined session=%s", sessionID)
	defer log.Printf("[stream] spectator left session=%s", sessionID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				select {
				case <-done:
					_ = utils.SendSSEEvent(w, flusher, "done", map[string]string{"sessionId": sessionID})
				default:
					// dropped for being too slow
				}
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				log.Printf("[stream] session=%s write failed: %v", sessionID, err)
				return
			}
		}
	}
}
