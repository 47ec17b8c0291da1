// internal/app/features/register/handler.go
package register

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/inputval"
	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// MsgPasswordMismatch is shown when the confirmation differs.
const MsgPasswordMismatch = "Passwords do not match."

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

// registerInput holds the format rules checked before the identity
// backend sees the request. Missing fields are reported by the backend.
type registerInput struct {
	Username string `validate:"max=100" label:"Username"`
	Email    string `validate:"omitempty,email" label:"Email"`
}

type formData struct {
	viewdata.BaseVM
	Error    string
	Username string
	Email    string
}

// ServeRegister handles GET /register.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "register", formData{
		BaseVM: viewdata.NewBaseVM(r, "Create Account", "/login"),
	})
}

// HandleRegister handles POST /register. A new account is never left
// signed in; the user is sent to the login form.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/register")
		return
	}

	username := normalize.Name(r.FormValue("username"))
	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")

	reRender := func(msg string) {
		templates.Render(w, r, "register", formData{
			BaseVM:   viewdata.NewBaseVM(r, "Create Account", "/login"),
			Error:    msg,
			Username: username,
			Email:    email,
		})
	}

	if res := inputval.Validate(registerInput{Username: username, Email: email}); res.HasErrors() {
		reRender(res.First())
		return
	}
	if password != r.FormValue("confirm") {
		reRender(MsgPasswordMismatch)
		return
	}
	if len(password) < identity.MinPasswordLength {
		reRender(identity.MsgPasswordTooShort)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res := h.Identity.Register(ctx, username, email, password)
	if !res.OK {
		reRender(res.Message)
		return
	}
	h.Audit.Registered(r.Context(), r, email)

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("register: clear session", zap.Error(err))
	}
	http.Redirect(w, r, "/login?notice=registered", http.StatusSeeOther)
}
