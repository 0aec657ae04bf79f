package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

// Availability reports which personas have a usable backend.
type Availability interface {
	Available() []persona.ID
}

// Handler persona服务的HTTP处理器
type Handler struct {
	personas  persona.Store
	available Availability
}

// New 创建persona处理器
func New(personas persona.Store, available Availability) *Handler {
	return &Handler{
		personas:  personas,
		available: available,
	}
}

type personaView struct {
	persona.Persona
	Tag       string `json:"tag"`
	Available bool   `json:"available"`
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

// handleListPersonas 列出所有persona及其后端是否可用
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	ready := make(map[persona.ID]bool)
	if h.available != nil {
		for _, id := range h.available.Available() {
			ready[id] = true
		}
	}

	personas := h.personas.List()
	views := make([]personaView, 0, len(personas))
	for _, p := range personas {
		views = append(views, personaView{Persona: p, Tag: p.ID.Tag(), Available: ready[p.ID]})
	}
	utils.RespondJSON(w, http.StatusOK, views)
}
