package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/leaguedraft/go/internal/draft/gateway"
	"github.com/rs/zerolog/log"
)

// HealthFunc reports whether the service's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

// SetupRoutes builds the router. ws may be nil when the gateway is disabled.
func SetupRoutes(h *Handler, ws *gateway.WebSocketHandler, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID(log.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", healthz(health))

	r.Route("/api/draft/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Put("/", h.UpdateSession)
		r.Post("/pick", h.SubmitPick)
		r.Post("/start", h.StartDraft)
		r.Post("/repair", h.RepairSession)
		r.Get("/picks", h.ListPicks)
	})

	if ws != nil {
		r.Get("/ws/draft", ws.HandleSessionConnection)
		r.Get("/ws/stats", ws.HandleConnectionStats)
	}
	return r
}

func healthz(check HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
