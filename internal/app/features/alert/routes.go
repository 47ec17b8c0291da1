// internal/app/features/alert/routes.go
package alert

import (
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeAlerts)
	r.Get("/stream", h.ServeStream)
	r.Post("/{id}/delete", h.HandleDelete)
	return r
}
