// Package htmlsanitize cleans text that arrives from outside the app (alert
// descriptions written by the detection pipeline) before it is rendered.
package htmlsanitize

import (
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultDescription is shown for an alert without a description.
const DefaultDescription = "Anomaly detected by AI model."

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}

// Sanitize strips anything outside the user-generated-content policy.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return getPolicy().Sanitize(s)
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<")
}

// PlainTextToHTML escapes s and turns newlines into <br>.
func PlainTextToHTML(s string) string {
	escaped := html.EscapeString(s)
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// Description prepares an alert description for display. Plain text keeps
// its line breaks; markup is sanitized; blank becomes DefaultDescription.
func Description(s string) template.HTML {
	s = strings.TrimSpace(s)
	if s == "" {
		return template.HTML(html.EscapeString(DefaultDescription))
	}
	if IsPlainText(s) {
		return template.HTML(PlainTextToHTML(s))
	}
	return template.HTML(Sanitize(s))
}
