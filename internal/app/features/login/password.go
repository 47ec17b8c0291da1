// internal/app/features/login/password.go
package login

import (
	"context"
	"net/http"

	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| GET/POST /login/forgot                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeForgot(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "login_forgot", forgotFormData{
		BaseVM: viewdata.NewBaseVM(r, "Reset Password", "/login"),
		Email:  normalize.Email(query.Get(r, "email")),
	})
}

func (h *Handler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login/forgot")
		return
	}
	email := normalize.Email(r.FormValue("email"))

	render := func(errMsg, notice string) {
		templates.Render(w, r, "login_forgot", forgotFormData{
			BaseVM: viewdata.NewBaseVM(r, "Reset Password", "/login"),
			Error:  errMsg,
			Notice: notice,
			Email:  email,
		})
	}

	if h.ResetLimiter != nil {
		if ok, msg := h.ResetLimiter.Check(r, email); !ok {
			h.Log.Warn("password reset rate limited", zap.String("ip", ratelimit.ClientIP(r)), zap.String("email", email))
			h.Audit.LoginRateLimited(r.Context(), r, email, "reset")
			render(msg, "")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res := h.Identity.ForgotPassword(ctx, email)
	if !res.OK {
		render(res.Message, "")
		return
	}
	h.Audit.PasswordResetRequested(r.Context(), r, email)
	render("", res.Message)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET/POST /login/reset?token=                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeReset(w http.ResponseWriter, r *http.Request) {
	if !h.ResetInApp {
		http.Redirect(w, r, "/login/forgot", http.StatusSeeOther)
		return
	}
	templates.Render(w, r, "login_reset", resetFormData{
		BaseVM: viewdata.NewBaseVM(r, "Choose a New Password", "/login"),
		Token:  query.Get(r, "token"),
	})
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !h.ResetInApp {
		http.Redirect(w, r, "/login/forgot", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login/forgot")
		return
	}
	token := r.FormValue("token")
	password := r.FormValue("password")

	renderErr := func(msg string) {
		templates.Render(w, r, "login_reset", resetFormData{
			BaseVM: viewdata.NewBaseVM(r, "Choose a New Password", "/login"),
			Error:  msg,
			Token:  token,
		})
	}

	if password != r.FormValue("confirm") {
		renderErr("Passwords do not match.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res := h.Identity.CompletePasswordReset(ctx, token, password)
	if !res.OK {
		renderErr(res.Message)
		return
	}
	http.Redirect(w, r, "/login?notice=password_reset", http.StatusSeeOther)
}
