// internal/app/system/guard/middleware.go
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/anomalyhub/internal/app/system/resolver"
	"go.uber.org/zap"
)

// SessionFunc reads the resolved session for a request.
type SessionFunc func(r *http.Request) resolver.Session

// Middleware applies Decide to every request whose path is not exempt.
// Exempt entries are path prefixes (e.g. "/static/", "/health").
func Middleware(session SessionFunc, logger *zap.Logger, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exempt {
				if r.URL.Path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			d := Decide(session(r), r.URL.Path)
			switch d.Kind {
			case Render:
				next.ServeHTTP(w, r)
			case Placeholder:
				renderPlaceholder(w, r)
			case Redirect:
				target := d.Target
				if target == PathLogin && Section(r.URL.Path) != PathRoot && r.Method == http.MethodGet {
					target += "?return=" + url.QueryEscape(r.URL.RequestURI())
				}
				logger.Debug("guard redirect",
					zap.String("path", r.URL.Path),
					zap.String("target", target))
				redirect(w, r, target)
			}
		})
	}
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

const placeholderHTML = `<!doctype html>
<html lang="en"><head><meta charset="utf-8">
<meta http-equiv="refresh" content="1">
<title>Loading…</title>
<link rel="stylesheet" href="/static/css/app.css">
</head><body class="placeholder"><div class="spinner" role="status">Loading…</div></body></html>`

// renderPlaceholder is the blocking screen shown while a role is unresolved.
// It is static so it cannot depend on the state it is waiting for.
func renderPlaceholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(placeholderHTML))
}
