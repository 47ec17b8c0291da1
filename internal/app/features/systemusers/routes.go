// internal/app/features/systemusers/routes.go
package systemusers

import (
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts all system user routes under the path where this
// router is mounted (typically "/system-users" from bootstrap).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		// Only signed-in admins can manage users.
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleAdmin))

		pr.Get("/", h.ServeList)

		pr.Get("/new", h.ServeNew)
		pr.Post("/", h.HandleCreate)

		pr.Get("/{uid}/edit", h.ServeEdit)
		pr.Post("/{uid}", h.HandleEdit)
		pr.Post("/{uid}/delete", h.HandleDelete)

		pr.Get("/{uid}/manage_modal", h.ServeManageModal)
	})

	return r
}
