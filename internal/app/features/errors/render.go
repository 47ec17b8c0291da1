// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/dalemusser/waffle/pantry/templates"
)

func render(w http.ResponseWriter, r *http.Request, status int, title, msg, backURL string) {
	vm := viewdata.NewBaseVM(r, title, "/")
	if backURL != "" {
		vm.BackURL = backURL
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", pageData{
		BaseVM:  vm,
		Status:  status,
		Message: msg,
	})
}

// RenderUnauthorized shows a friendly "sign in required" page.
// If backURL is empty, it will default to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/login"
	}
	render(w, r, http.StatusUnauthorized, "Sign in required", "Please sign in to continue.", backURL)
}

// RenderForbidden shows a friendly access error page with a message.
// If backURL is empty, it resolves a safe back URL with a default fallback.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = httpnav.ResolveBackURL(r, "/")
	}
	render(w, r, http.StatusForbidden, "Access denied", msg, backURL)
}

// RenderNotFound shows a 404 page.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if msg == "" {
		msg = "That page could not be found."
	}
	render(w, r, http.StatusNotFound, "Not found", msg, backURL)
}

// RenderBadRequest shows a 400 page.
func RenderBadRequest(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	render(w, r, http.StatusBadRequest, "Bad request", msg, backURL)
}

// RenderServerError shows a 500 page. msg is shown to the user as is, so
// it must not carry internal details.
func RenderServerError(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if msg == "" {
		msg = "Something went wrong. Please try again."
	}
	render(w, r, http.StatusInternalServerError, "Server error", msg, backURL)
}

// HTMXError answers an htmx request with a status and a short text body
// the client swaps into its error target.
func HTMXError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("HX-Reswap", "none")
	w.Header().Set("HX-Trigger", `{"flash":{"kind":"error","message":`+jsonString(msg)+`}}`)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
