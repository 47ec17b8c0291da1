// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes wires the dashboard at "/". The page, its log fragment and the
// video relay all require a signed-in user.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.ServeDashboard)
		pr.Get("/dashboard/logs", h.ServeLogs)
		pr.Get("/video", h.ServeVideo)
	})

	return r
}
