// internal/app/features/login/handler.go
package login

import (
	"context"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

type Handler struct {
	Identity      *identity.Service
	Log           *zap.Logger
	SessionMgr    *auth.SessionManager
	ErrLog        *uierrors.ErrorLogger
	Audit         *auditlog.Logger
	LoginLimiter  *ratelimit.CredentialLimiter
	ResetLimiter  *ratelimit.CredentialLimiter
	GoogleEnabled bool // True if Google OAuth is configured
	ResetInApp    bool // True when reset links land on /login/reset instead of a provider page
}

func NewHandler(
	svc *identity.Service,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	loginLimiter, resetLimiter *ratelimit.CredentialLimiter,
	googleEnabled, resetInApp bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Identity:      svc,
		Log:           logger,
		SessionMgr:    sessionMgr,
		ErrLog:        errLog,
		Audit:         audit,
		LoginLimiter:  loginLimiter,
		ResetLimiter:  resetLimiter,
		GoogleEnabled: googleEnabled,
		ResetInApp:    resetInApp,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error         string
	Notice        string
	Email         string
	ReturnURL     string
	GoogleEnabled bool
}

type forgotFormData struct {
	viewdata.BaseVM
	Error  string
	Notice string
	Email  string
}

type resetFormData struct {
	viewdata.BaseVM
	Error string
	Token string
}

// errorMessages maps ?error= codes set by redirects (mostly the Google
// callback) to the text shown above the form.
var errorMessages = map[string]string{
	"google_not_configured": "Google sign-in is not configured.",
	"google_denied":         "Google sign-in was cancelled.",
	"invalid_state":         "Your sign-in attempt expired. Please try again.",
	"invalid_code":          "Google sign-in failed. Please try again.",
	"token_exchange":        "Google sign-in failed. Please try again.",
	"user_info":             "Could not read your Google profile. Please try again.",
	"unverified_email":      "Your Google email address is not verified.",
	"session":               "Unable to create session. Please try again.",
	"internal":              identity.MsgGeneric,
}

var noticeMessages = map[string]string{
	"registered":     "Account created! Please log in.",
	"password_reset": "Password updated. Please log in.",
	"deleted":        "Your account has been deleted.",
	"signed_out":     "You have been signed out.",
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login", loginFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Login", "/"),
		Error:         errorMessages[query.Get(r, "error")],
		Notice:        noticeMessages[query.Get(r, "notice")],
		ReturnURL:     query.Get(r, "return"),
		GoogleEnabled: h.GoogleEnabled,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")
	ret := strings.TrimSpace(r.FormValue("return"))

	if h.LoginLimiter != nil {
		if ok, msg := h.LoginLimiter.Check(r, email); !ok {
			h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)), zap.String("email", email))
			h.Audit.LoginRateLimited(r.Context(), r, email, "login")
			h.renderFormWithError(w, r, msg, email, ret)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	out, res := h.Identity.Login(ctx, email, password)
	if !res.OK {
		h.Audit.LoginFailed(r.Context(), r, email, res.Message)
		h.renderFormWithError(w, r, res.Message, email, ret)
		return
	}

	if h.LoginLimiter != nil {
		h.LoginLimiter.ResetEmail(email)
	}

	if err := h.SessionMgr.SignIn(w, r, out.State); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("uid", out.Principal.UID))
		h.renderFormWithError(w, r, "Unable to create session. Please try again.", email, ret)
		return
	}

	h.Log.Info("user logged in",
		zap.String("uid", out.Principal.UID),
		zap.String("role", out.Role))
	h.Audit.LoginSuccess(r.Context(), r, out.Principal.UID, email, "password")

	http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/"), http.StatusSeeOther)
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, msg, email, returnURL string) {
	templates.Render(w, r, "login", loginFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Login", "/"),
		Error:         msg,
		Email:         email,
		ReturnURL:     returnURL,
		GoogleEnabled: h.GoogleEnabled,
	})
}
