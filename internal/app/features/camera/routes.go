// internal/app/features/camera/routes.go
package camera

import (
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeCamera)
	r.Post("/", h.HandleAddCamera)
	return r
}
