package ratelimit_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowAndWindowExpiry(t *testing.T) {
	l := ratelimit.New(2, time.Minute)
	defer l.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	assert.True(t, l.Allow("k"))
	assert.Equal(t, 1, l.Remaining("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
	assert.Equal(t, 0, l.Remaining("k"))

	now = now.Add(61 * time.Second)
	assert.Equal(t, 2, l.Remaining("k"))
	assert.True(t, l.Allow("k"))
}

func TestLimiter_Reset(t *testing.T) {
	l := ratelimit.New(1, time.Hour)
	defer l.Close()

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))
	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", ratelimit.ClientIP(r))

	r.Header.Set("X-Real-IP", " 10.0.0.2 ")
	assert.Equal(t, "10.0.0.2", ratelimit.ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ratelimit.ClientIP(r))
}

func TestCredentialLimiter_EmailWindowIsCaseInsensitive(t *testing.T) {
	cl := ratelimit.NewCredentialLimiter("login", 100, time.Minute, 2, time.Minute)
	defer cl.Close()

	r := httptest.NewRequest("POST", "/login", nil)
	ok, _ := cl.Check(r, "Ada@Example.com")
	assert.True(t, ok)
	ok, _ = cl.Check(r, " ada@example.com")
	assert.True(t, ok)
	ok, msg := cl.Check(r, "ADA@EXAMPLE.COM")
	assert.False(t, ok)
	assert.True(t, strings.Contains(msg, "for this account"), msg)

	cl.ResetEmail("ada@example.com")
	ok, _ = cl.Check(r, "ada@example.com")
	assert.True(t, ok)
}

func TestCredentialLimiter_IPWindow(t *testing.T) {
	cl := ratelimit.NewCredentialLimiter("password reset", 1, time.Minute, 100, time.Minute)
	defer cl.Close()

	r := httptest.NewRequest("POST", "/login/forgot", nil)
	ok, _ := cl.Check(r, "")
	require.True(t, ok)
	ok, msg := cl.Check(r, "")
	assert.False(t, ok)
	assert.Equal(t, "Too many password reset attempts. Please wait a minute before trying again.", msg)
}
