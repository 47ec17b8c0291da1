package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/anomalyhub/internal/app/system/htmlsanitize"
)

func TestSanitize_Empty(t *testing.T) {
	if got := htmlsanitize.Sanitize(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	got := htmlsanitize.Sanitize("<p>Hello</p><script>alert('xss')</script>")
	if got != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	in := `<a href="javascript:alert('xss')">Click</a>`
	if got := htmlsanitize.Sanitize(in); strings.Contains(got, "javascript:") {
		t.Errorf("expected javascript: href to be removed, got %q", got)
	}
}

func TestSanitize_KeepsFormatting(t *testing.T) {
	in := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if got := htmlsanitize.Sanitize(in); got != in {
		t.Errorf("expected safe HTML preserved, got %q", got)
	}
}

func TestPlainTextToHTML(t *testing.T) {
	got := htmlsanitize.PlainTextToHTML("a < b\nc & d")
	if got != "a &lt; b<br>c &amp; d" {
		t.Errorf("unexpected %q", got)
	}
}

func TestDescription(t *testing.T) {
	if got := string(htmlsanitize.Description("  ")); got != htmlsanitize.DefaultDescription {
		t.Errorf("blank description: got %q", got)
	}
	if got := string(htmlsanitize.Description("Two people\nfighting")); got != "Two people<br>fighting" {
		t.Errorf("plain description: got %q", got)
	}
	got := string(htmlsanitize.Description(`<b>Fight</b><img src=x onerror="alert(1)">`))
	if strings.Contains(got, "onerror") || !strings.Contains(got, "<b>Fight</b>") {
		t.Errorf("html description: got %q", got)
	}
}
