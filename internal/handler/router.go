package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-debate/backend/internal/handler/debate"
	"github.com/zhouzirui/z-debate/backend/internal/handler/live"
	"github.com/zhouzirui/z-debate/backend/internal/handler/persona"
	"github.com/zhouzirui/z-debate/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/z-debate/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-debate/backend/internal/model/persona"
	debateService "github.com/zhouzirui/z-debate/backend/internal/service/debate"
	"github.com/zhouzirui/z-debate/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, available persona.Availability, debates *debateService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(personas, available).RegisterRoutes(api)
		debate.New(debates).RegisterRoutes(api)
		stream.New(debates).RegisterRoutes(api)
		live.New(debates).RegisterRoutes(api)
	})

	return r
}
