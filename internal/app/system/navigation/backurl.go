// Package navigation provides helpers for safe URL navigation and redirects.
package navigation

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// BackURLOptions configures the behavior of SafeBackURL.
type BackURLOptions struct {
	// AllowedPrefix is the required URL prefix (e.g., "/system-users").
	// If empty, any safe URL is allowed.
	AllowedPrefix string

	// ExcludedSubpaths are subpath patterns to reject (e.g., "/edit", "/delete", "/new").
	// These prevent redirect loops back to action pages.
	ExcludedSubpaths []string

	// Fallback is the default URL if no valid return URL is found.
	Fallback string
}

// SafeBackURL extracts and validates a return URL from the request.
//
// It checks both the query parameter and form value for "return", validates
// the URL is safe (not an open redirect), optionally validates the prefix,
// and excludes specified subpaths to prevent redirect loops.
//
//	back := navigation.SafeBackURL(r, navigation.SystemUsersBackURL)
func SafeBackURL(r *http.Request, opts BackURLOptions) string {
	// Try query parameter first, then form value
	ret := urlutil.SafeReturn(query.Get(r, "return"), "", "")
	if ret == "" {
		ret = urlutil.SafeReturn(strings.TrimSpace(r.FormValue("return")), "", "")
	}

	if ret != "" {
		valid := true

		if opts.AllowedPrefix != "" && !strings.HasPrefix(ret, opts.AllowedPrefix) {
			valid = false
		}
		for _, excluded := range opts.ExcludedSubpaths {
			if strings.Contains(ret, excluded) {
				valid = false
				break
			}
		}

		if valid {
			return ret
		}
	}
	return opts.Fallback
}

// WithParam sets key=value on u's query, replacing any previous value.
// A u that does not parse is returned unchanged.
func WithParam(u, key, value string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	q := parsed.Query()
	q.Set(key, value)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

// Common back URL configurations for reuse across packages.
var (
	// SystemUsersBackURL returns to the (possibly filtered) system-users list.
	SystemUsersBackURL = BackURLOptions{
		AllowedPrefix:    "/system-users",
		ExcludedSubpaths: []string{"/edit", "/delete", "/new", "/manage_modal"},
		Fallback:         "/system-users",
	}

	// AlertBackURL returns to the alert list, keeping its focus parameter.
	AlertBackURL = BackURLOptions{
		AllowedPrefix:    "/alert",
		ExcludedSubpaths: []string{"/stream", "/delete"},
		Fallback:         "/alert",
	}
)
