package navigation

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeBackURL_Query(t *testing.T) {
	tests := []struct {
		name   string
		ret    string
		opts   BackURLOptions
		expect string
	}{
		{"no return", "", SystemUsersBackURL, "/system-users"},
		{"filtered list", "/system-users?role=admin", SystemUsersBackURL, "/system-users?role=admin"},
		{"wrong prefix", "/alert", SystemUsersBackURL, "/system-users"},
		{"edit page loops", "/system-users/u1/edit", SystemUsersBackURL, "/system-users"},
		{"modal loops", "/system-users/u1/manage_modal", SystemUsersBackURL, "/system-users"},
		{"absolute url", "https://evil.example.com/system-users", SystemUsersBackURL, "/system-users"},
		{"alert focus", "/alert?focus=a1", AlertBackURL, "/alert?focus=a1"},
		{"alert stream", "/alert/stream", AlertBackURL, "/alert"},
		{"no prefix required", "/camera", BackURLOptions{Fallback: "/"}, "/camera"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/x"
			if tt.ret != "" {
				target += "?return=" + url.QueryEscape(tt.ret)
			}
			r := httptest.NewRequest("GET", target, nil)
			assert.Equal(t, tt.expect, SafeBackURL(r, tt.opts))
		})
	}
}

func TestSafeBackURL_FormValue(t *testing.T) {
	body := url.Values{"return": {"/system-users?search=ada"}}.Encode()
	r := httptest.NewRequest("POST", "/system-users/u1", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	assert.Equal(t, "/system-users?search=ada", SafeBackURL(r, SystemUsersBackURL))
}

func TestWithParam(t *testing.T) {
	assert.Equal(t, "/system-users?notice=created", WithParam("/system-users", "notice", "created"))
	assert.Equal(t, "/system-users?notice=updated&role=admin",
		WithParam("/system-users?role=admin&notice=created", "notice", "updated"))
	assert.Equal(t, "/alert?focus=a+b", WithParam("/alert", "focus", "a b"))
}
