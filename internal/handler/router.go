package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/catalyst/backend/internal/handler/analysis"
	"github.com/zhouzirui/catalyst/backend/internal/handler/prompt"
	"github.com/zhouzirui/catalyst/backend/internal/handler/realtime"
	"github.com/zhouzirui/catalyst/backend/internal/handler/session"
	"github.com/zhouzirui/catalyst/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/catalyst/backend/internal/middleware"
	promptModel "github.com/zhouzirui/catalyst/backend/internal/model/prompt"
	"github.com/zhouzirui/catalyst/backend/internal/service/ai"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. gateway may be nil, in which
// case chat and analysis endpoints answer 503 while session browsing and
// exports keep working.
func NewRouter(profiles promptModel.Store, chatSvc *chatService.Service, gateway ai.Gateway) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middlewarePkg.Metrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"gateway": gateway != nil,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		prompt.New(profiles).RegisterRoutes(api)
		session.New(chatSvc).RegisterRoutes(api)
		stream.New(gateway, chatSvc).RegisterRoutes(api)
		analysis.New(gateway, chatSvc).RegisterRoutes(api)
		realtime.NewWebSocketHandler(gateway, chatSvc).RegisterRoutes(api)
	})

	return r
}
