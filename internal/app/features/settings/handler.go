// internal/app/features/settings/handler.go
package settings

import (
	"net/http"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// MsgConfirmDeleteAccount is the prompt shown before an account is deleted.
const MsgConfirmDeleteAccount = "Are you sure you want to delete your account? This action cannot be undone."

// Handler owns the signed-in user's profile panel.
type Handler struct {
	Identity   *identity.Service
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Audit      *auditlog.Logger
}

func NewHandler(svc *identity.Service, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Identity:   svc,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Audit:      audit,
	}
}

type settingsData struct {
	viewdata.BaseVM
	Username        string
	Email           string
	PhotoURL        string
	Role            string
	EditingPassword bool
	ConfirmDelete   string
}

func (h *Handler) pageData(r *http.Request, u *auth.SessionUser) settingsData {
	data := settingsData{
		BaseVM:        viewdata.NewBaseVM(r, "Settings", "/"),
		Username:      u.Name,
		Email:         u.Email,
		PhotoURL:      u.PhotoURL,
		Role:          u.Role,
		ConfirmDelete: MsgConfirmDeleteAccount,
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "settings profile")
	defer cancel()
	if prof, err := h.Identity.Profile(ctx, u.ID); err == nil {
		if prof.Username != "" {
			data.Username = prof.Username
		}
		if prof.Email != "" {
			data.Email = prof.Email
		}
		if prof.PhotoURL != "" {
			data.PhotoURL = prof.PhotoURL
		}
	} else {
		h.Log.Debug("settings: profile unavailable, using session", zap.Error(err), zap.String("uid", u.ID))
	}
	if data.Username == "" {
		data.Username = "User"
	}
	return data
}

// ServeSettings renders the profile panel.
func (h *Handler) ServeSettings(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	templates.Render(w, r, "settings", h.pageData(r, u))
}

// HandleChangePassword re-authenticates with the current password and sets
// the new one. The refreshed sign-in time is written back to the session.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/settings")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "change password")
	defer cancel()

	state := u.AuthState()
	res := h.Identity.UpdateUserPassword(ctx, state, r.FormValue("current_password"), r.FormValue("new_password"))

	data := h.pageData(r, u)
	if !res.OK {
		h.Audit.PasswordChangeFailed(r.Context(), r, u.ID, res.Message)
		data.EditingPassword = true
		data.BaseVM = data.BaseVM.WithFlash(false, res.Message)
		templates.Render(w, r, "settings", data)
		return
	}

	if err := h.SessionMgr.SignIn(w, r, *state); err != nil {
		h.Log.Warn("refresh session after password change", zap.Error(err), zap.String("uid", u.ID))
	}
	h.Log.Info("password changed", zap.String("uid", u.ID))
	h.Audit.PasswordChanged(r.Context(), r, u.ID)

	data.BaseVM = data.BaseVM.WithFlash(true, res.Message)
	templates.Render(w, r, "settings", data)
}

// HandleDeleteAccount deletes the signed-in account and ends the session.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "delete account")
	defer cancel()

	res := h.Identity.DeleteAccount(ctx, u.AuthState())
	if !res.OK {
		data := h.pageData(r, u)
		data.BaseVM = data.BaseVM.WithFlash(false, res.Message)
		templates.Render(w, r, "settings", data)
		return
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("sign out after account deletion", zap.Error(err), zap.String("uid", u.ID))
	}
	h.Log.Info("account deleted", zap.String("uid", u.ID))
	h.Audit.AccountDeleted(r.Context(), r, u.ID, u.Email)

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?notice=deleted")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login?notice=deleted", http.StatusSeeOther)
}
