package debate

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
	"github.com/zhouzirui/z-debate/backend/internal/service/backend"
	debateService "github.com/zhouzirui/z-debate/backend/internal/service/debate"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

// Handler 辩论会话的HTTP处理器
type Handler struct {
	debates *debateService.Service
}

// New 创建辩论处理器
func New(debates *debateService.Service) *Handler {
	return &Handler{debates: debates}
}

// RegisterRoutes 注册辩论相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/debates", h.handleCreate)
	r.Get("/debates", h.handleList)
	r.Get("/debates/{sessionID}", h.handleGet)
	r.Post("/debates/{sessionID}/turns", h.handleTurn)
	r.Delete("/debates/{sessionID}", h.handleStop)
}

type turnResponse struct {
	SessionID  string       `json:"sessionId"`
	Turn       string       `json:"turn,omitempty"`
	PersonaTag string       `json:"personaTag,omitempty"`
	Transcript []string     `json:"transcript"`
	TurnCount  int          `json:"turnCount"`
	State      debate.State `json:"state"`
	Marker     string       `json:"marker,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func newTurnResponse(snap debate.Snapshot) turnResponse {
	return turnResponse{
		SessionID:  snap.ID,
		Transcript: debate.Lines(snap.Transcript),
		TurnCount:  snap.TurnIndex,
		State:      snap.State,
	}
}

// handleCreate 以用户给出的话题开启一场辩论
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Topic    string   `json:"topic"`
		Rotation []string `json:"rotation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.debates.Start(r.Context(), payload.Topic, payload.Rotation)
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	h.debates.Announce(r.Context(), session)

	snap := session.Snapshot()
	resp := newTurnResponse(snap)
	resp.Turn = snap.Transcript[0].Line()
	resp.PersonaTag = snap.Transcript[0].Speaker.Tag()
	utils.RespondJSON(w, http.StatusCreated, resp)
}

// handleList 列出内存中的全部会话
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.debates.Store().List(r.Context()))
}

// handleGet 返回会话快照
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.debates.Store().Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleTurn 生成下一位发言者的回合；会话不存在时可用客户端持有的历史重建
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		History []string `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	turn, snap, err := h.debates.Continue(r.Context(), sessionID, payload.History)
	if err != nil {
		var turnErr *debateService.TurnError
		if errors.As(err, &turnErr) {
			resp := newTurnResponse(snap)
			resp.Marker = turnErr.Marker()
			resp.Error = turnErr.Err.Error()
			utils.RespondJSON(w, statusFor(err), resp)
			return
		}
		h.respondFailure(w, err)
		return
	}

	resp := newTurnResponse(snap)
	resp.Turn = turn.Line()
	resp.PersonaTag = turn.Speaker.Tag()
	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleStop 停止会话
func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	snap, err := h.debates.Stop(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, newTurnResponse(snap))
}

func (h *Handler) respondFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[debate] request failed: %v", err)
	}
	utils.RespondError(w, status, err.Error())
}

func statusFor(err error) int {
	var unknown *persona.UnknownPersonaError
	var cfgErr *backend.ConfigurationError
	var backendErr *backend.BackendError

	switch {
	case errors.Is(err, debateService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, debateService.ErrTopicRequired),
		errors.Is(err, debate.ErrMalformedLine),
		errors.As(err, &unknown):
		return http.StatusBadRequest
	case errors.Is(err, debateService.ErrSessionClosed),
		errors.Is(err, debateService.ErrSessionStopped),
		errors.Is(err, debateService.ErrSessionBusy):
		return http.StatusConflict
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
