// internal/app/features/systemusers/modal.go
package systemusers

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
)

// ServeManageModal renders the Manage modal for a single user.
//
// It is invoked via HTMX from the list page and returns only the modal
// snippet (system_user_manage_modal).
func (h *Handler) ServeManageModal(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(r)
	if !ok {
		uierrors.HTMXError(w, http.StatusUnauthorized, "Please sign in.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load manage modal")
	defer cancel()

	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	prof, err := h.Identity.Profile(ctx, uid)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			uierrors.HTMXError(w, http.StatusNotFound, "User not found.")
			return
		}
		h.ErrLog.HTMXLogServerError(w, r, "load manage modal failed", err, "Failed to load user.")
		return
	}

	back := navigation.SafeBackURL(r, navigation.SystemUsersBackURL)
	templates.RenderSnippet(w, "system_user_manage_modal", manageModalData{
		UID:           prof.UID,
		Username:      displayName(prof),
		Email:         prof.Email,
		Role:          prof.EffectiveRole(),
		IsSelf:        prof.UID == admin.ID,
		ConfirmRemove: MsgConfirmRemove,
		EditURL:       rowURL(prof.UID, "edit", back),
		DeleteURL:     rowURL(prof.UID, "delete", back),
	})
}
