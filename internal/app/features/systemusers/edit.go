// internal/app/features/systemusers/edit.go
package systemusers

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServeEdit renders the Edit User form. The password is never shown or
// changed here.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "load system user")
	defer cancel()

	back := navigation.SafeBackURL(r, navigation.SystemUsersBackURL)
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	prof, err := h.Identity.Profile(ctx, uid)
	if err != nil {
		if errors.Is(err, identity.ErrProfileNotFound) {
			uierrors.RenderNotFound(w, r, "User not found.", back)
			return
		}
		h.ErrLog.LogServerError(w, r, "load system user failed", err, "Failed to load user.", back)
		return
	}

	templates.Render(w, r, "system_user_edit", formData{
		BaseVM:   formBase(r, "Edit User", back),
		UID:      prof.UID,
		Username: prof.Username,
		Email:    prof.Email,
		UserRole: prof.EffectiveRole(),
		IsEdit:   true,
		IsSelf:   prof.UID == admin.ID,
	})
}

// HandleEdit processes POST /system-users/{uid}.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", listURL)
		return
	}

	back := navigation.SafeBackURL(r, navigation.SystemUsersBackURL)
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	username := normalize.Name(r.FormValue("username"))
	email := normalize.Email(r.FormValue("email"))
	role := normalize.Role(r.FormValue("role"))
	isSelf := uid == admin.ID

	reRender := func(msg string) {
		templates.Render(w, r, "system_user_edit", formData{
			BaseVM:   formBase(r, "Edit User", back),
			UID:      uid,
			Username: username,
			Email:    email,
			UserRole: role,
			IsEdit:   true,
			IsSelf:   isSelf,
			Error:    msg,
		})
	}

	// Prevent an admin from demoting themselves.
	if isSelf && role != admin.Role {
		reRender(MsgSelfRoleChange)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update system user")
	defer cancel()

	res := h.Identity.UpdateUserEntry(ctx, uid, identity.ProfilePatch{
		Username: username,
		Email:    email,
		Role:     role,
	})
	if !res.OK {
		reRender(res.Message)
		return
	}

	h.Log.Info("system user updated", zap.String("admin", admin.ID), zap.String("uid", uid), zap.String("role", role))
	h.Audit.UserUpdated(r.Context(), r, admin.ID, uid, role)
	http.Redirect(w, r, navigation.WithParam(back, "notice", "updated"), http.StatusSeeOther)
}
