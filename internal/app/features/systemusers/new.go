// internal/app/features/systemusers/new.go
package systemusers

import (
	"net/http"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/inputval"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// ServeNew renders the Add User form.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "system_user_new", formData{
		BaseVM:   formBase(r, "Add New User", navigation.SafeBackURL(r, navigation.SystemUsersBackURL)),
		UserRole: models.RoleUser,
	})
}

// HandleCreate creates an account and profile for someone else. The
// admin's own session is left untouched.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
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
	username := normalize.Name(r.FormValue("username"))
	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")
	role := normalize.Role(r.FormValue("role"))

	reRender := func(msg string) {
		templates.Render(w, r, "system_user_new", formData{
			BaseVM:   formBase(r, "Add New User", back),
			Username: username,
			Email:    email,
			UserRole: role,
			Error:    msg,
		})
	}

	if email != "" && !inputval.IsValidEmail(email) {
		reRender(inputval.MsgInvalidEmail)
		return
	}
	if len(password) < identity.MinPasswordLength {
		reRender(identity.MsgPasswordTooShort)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create system user")
	defer cancel()

	res := h.Identity.CreateUserEntry(ctx, admin.AuthState(), identity.NewUserEntry{
		Username: username,
		Email:    email,
		Role:     role,
	}, password)
	if !res.OK {
		h.Log.Warn("create user rejected", zap.String("admin", admin.ID), zap.String("email", email), zap.String("reason", res.Message))
		reRender(res.Message)
		return
	}

	h.Audit.UserCreated(r.Context(), r, admin.ID, email, role)
	http.Redirect(w, r, navigation.WithParam(back, "notice", "created"), http.StatusSeeOther)
}
