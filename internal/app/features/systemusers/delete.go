// internal/app/features/systemusers/delete.go
package systemusers

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleDelete removes a user's profile from the list. The account itself
// is not deleted.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	back := navigation.SafeBackURL(r, navigation.SystemUsersBackURL)
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	isHTMX := r.Header.Get("HX-Request") == "true"

	if uid == admin.ID {
		if isHTMX {
			uierrors.HTMXError(w, http.StatusBadRequest, MsgSelfRemove)
			return
		}
		uierrors.RenderBadRequest(w, r, MsgSelfRemove, back)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "remove system user")
	defer cancel()

	res := h.Identity.DeleteUserEntry(ctx, uid)
	if !res.OK {
		if isHTMX {
			uierrors.HTMXError(w, http.StatusInternalServerError, res.Message)
			return
		}
		uierrors.RenderServerError(w, r, res.Message, back)
		return
	}

	h.Log.Info("system user removed", zap.String("admin", admin.ID), zap.String("uid", uid))
	h.Audit.UserRemoved(r.Context(), r, admin.ID, uid)

	target := navigation.WithParam(back, "notice", "removed")
	if isHTMX {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
