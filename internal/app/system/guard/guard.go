// Package guard decides, once per request, whether the requested view may
// render for the current session. Every shell page goes through Decide; no
// handler repeats role checks of its own for navigation purposes.
package guard

import (
	"strings"

	"github.com/dalemusser/anomalyhub/internal/app/system/resolver"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
)

// Kind is the outcome of a guard decision.
type Kind int

const (
	Render Kind = iota
	Redirect
	Placeholder
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case Placeholder:
		return "placeholder"
	}
	return "unknown"
}

// Decision is what the router should do with a request.
type Decision struct {
	Kind   Kind
	Target string // redirect destination when Kind is Redirect
}

const (
	PathRoot        = "/"
	PathLogin       = "/login"
	PathRegister    = "/register"
	PathCamera      = "/camera"
	PathAlert       = "/alert"
	PathSettings    = "/settings"
	PathSystemUsers = "/system-users"
	PathAuditLog    = "/audit"
)

var (
	authForms = map[string]bool{PathLogin: true, PathRegister: true}

	shell = map[string]bool{
		PathRoot:        true,
		PathCamera:      true,
		PathAlert:       true,
		PathSettings:    true,
		PathSystemUsers: true,
		PathAuditLog:    true,
	}

	adminOnly = map[string]bool{PathSystemUsers: true, PathAuditLog: true}

	// Endpoints that serve the dashboard page's live parts.
	aliases = map[string]string{
		"/dashboard": PathRoot,
		"/video":     PathRoot,
	}
)

// Section reduces a request path to the top-level route it belongs to:
// "/alert/stream" is "/alert", "/dashboard/logs" is "/".
func Section(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return PathRoot
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	seg := path
	if i := strings.IndexByte(path[1:], '/'); i >= 0 {
		seg = path[:i+1]
	}
	if a, ok := aliases[seg]; ok {
		return a
	}
	return seg
}

// Decide is the route guard. It is pure: the same session and path always
// produce the same decision.
func Decide(s resolver.Session, path string) Decision {
	if s.Loading || (s.User != nil && s.Role == "") {
		return Decision{Kind: Placeholder}
	}

	p := Section(path)

	if s.User == nil {
		if authForms[p] {
			return Decision{Kind: Render}
		}
		return Decision{Kind: Redirect, Target: PathLogin}
	}

	if authForms[p] || !shell[p] {
		return Decision{Kind: Redirect, Target: PathRoot}
	}

	isAdmin := s.Role == models.RoleAdmin
	if p == PathRoot && isAdmin {
		return Decision{Kind: Redirect, Target: PathSystemUsers}
	}
	if adminOnly[p] && !isAdmin {
		return Decision{Kind: Redirect, Target: PathRoot}
	}
	return Decision{Kind: Render}
}
