package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/resolver"
	"go.uber.org/zap"
)

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(
		"test-session-key-must-be-32-chars-long",
		"test-session",
		"",
		24*time.Hour,
		false,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func withTestUser(r *http.Request, role string) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:    "uid-1",
		Name:  "Test User",
		Email: "test@example.com",
		Role:  role,
	})
}

type fixedResolver struct {
	session resolver.Session
	calls   int
}

func (f *fixedResolver) State(_ context.Context, p *identity.Principal) resolver.Session {
	f.calls++
	s := f.session
	if !s.Revoked {
		s.User = p
	}
	return s
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "x", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty session key")
	}
}

func TestRequireSignedIn_NoUser_RedirectsToLogin(t *testing.T) {
	sm := newTestSessionManager(t)
	var called bool

	req := httptest.NewRequest("GET", "/camera", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?return=%2Fcamera" {
		t.Errorf("unexpected redirect %q", loc)
	}
	if called {
		t.Error("handler should not run")
	}
}

func TestRequireSignedIn_NoUser_API_Returns401(t *testing.T) {
	sm := newTestSessionManager(t)
	var called bool

	req := httptest.NewRequest("GET", "/dashboard/logs", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireSignedIn_NoUser_HTMX_ReturnsHXRedirect(t *testing.T) {
	sm := newTestSessionManager(t)
	var called bool

	req := httptest.NewRequest("GET", "/alert", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	sm.RequireSignedIn(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if hx := rec.Header().Get("HX-Redirect"); !strings.HasPrefix(hx, "/login") {
		t.Errorf("expected HX-Redirect to /login, got %q", hx)
	}
}

func TestRequireRole_WrongRole_RedirectsToForbidden(t *testing.T) {
	sm := newTestSessionManager(t)
	var called bool

	req := httptest.NewRequest("GET", "/system-users", nil)
	req.Header.Set("Accept", "text/html")
	req = withTestUser(req, "user")
	rec := httptest.NewRecorder()
	sm.RequireRole("admin")(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/forbidden" {
		t.Errorf("expected redirect to /forbidden, got %q", loc)
	}
}

func TestRequireRole_WrongRole_API_Returns403(t *testing.T) {
	sm := newTestSessionManager(t)
	var called bool

	req := httptest.NewRequest("GET", "/system-users", nil)
	req.Header.Set("Accept", "application/json")
	req = withTestUser(req, "user")
	rec := httptest.NewRecorder()
	sm.RequireRole("admin")(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestRequireRole_CorrectRole_Proceeds(t *testing.T) {
	sm := newTestSessionManager(t)
	var called bool

	req := httptest.NewRequest("GET", "/system-users", nil)
	req = withTestUser(req, "ADMIN")
	rec := httptest.NewRecorder()
	sm.RequireRole("admin")(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Error("expected handler to be called")
	}
}

// signInCookies runs SignIn and returns the cookies it set.
func signInCookies(t *testing.T, sm *auth.SessionManager, st identity.AuthState) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	if err := sm.SignIn(rec, req, st); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("SignIn set no cookie")
	}
	return cookies
}

func TestLoadSessionUser_RoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	res := &fixedResolver{session: resolver.Session{Role: "admin"}}
	sm.SetResolver(res)

	signedIn := time.Now().Add(-time.Minute).Truncate(time.Second)
	cookies := signInCookies(t, sm, identity.AuthState{
		Principal:  identity.Principal{UID: "u42", Email: "ada@x.com", DisplayName: "Ada", PhotoURL: "https://img/ada"},
		SignedInAt: signedIn,
	})

	var got *auth.SessionUser
	var session resolver.Session
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
		session = auth.CurrentSession(r)
	}))

	req := httptest.NewRequest("GET", "/system-users", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected a user in context")
	}
	if got.ID != "u42" || got.Name != "Ada" || got.Email != "ada@x.com" || got.Role != "admin" {
		t.Errorf("unexpected user %+v", got)
	}
	if !got.SignedInAt.Equal(signedIn) {
		t.Errorf("SignedInAt = %v, want %v", got.SignedInAt, signedIn)
	}
	if session.User == nil || session.User.UID != "u42" {
		t.Errorf("unexpected session %+v", session)
	}
	if st := got.AuthState(); st.Principal.UID != "u42" || !st.SignedInAt.Equal(signedIn) {
		t.Errorf("AuthState mismatch: %+v", st)
	}
}

func TestLoadSessionUser_LoadingHasNoUser(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetResolver(&fixedResolver{session: resolver.Session{Loading: true}})
	cookies := signInCookies(t, sm, identity.AuthState{Principal: identity.Principal{UID: "u1"}, SignedInAt: time.Now()})

	var found bool
	var session resolver.Session
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
		session = auth.CurrentSession(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if found {
		t.Error("no user should be set while the role is loading")
	}
	if !session.Loading {
		t.Error("expected loading session")
	}
}

func TestLoadSessionUser_RevokedAccountClearsCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	sm.SetResolver(&fixedResolver{session: resolver.Session{Role: "guest", Revoked: true}})
	cookies := signInCookies(t, sm, identity.AuthState{Principal: identity.Principal{UID: "u1"}, SignedInAt: time.Now()})

	var found bool
	var session resolver.Session
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = auth.CurrentUser(r)
		session = auth.CurrentSession(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if found {
		t.Error("a deleted account must not be signed in")
	}
	if session.User != nil || session.Role != "guest" {
		t.Errorf("expected guest session, got %+v", session)
	}
	out := rec.Result().Cookies()
	if len(out) == 0 || out[0].MaxAge >= 0 {
		t.Fatalf("expected the session cookie to be expired, got %+v", out)
	}
}

func TestLoadSessionUser_GarbageCookieIsGuest(t *testing.T) {
	sm := newTestSessionManager(t)
	res := &fixedResolver{session: resolver.Session{Role: "user"}}
	sm.SetResolver(res)

	var session resolver.Session
	h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session = auth.CurrentSession(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "test-session", Value: "not-a-valid-cookie"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if session.User != nil || session.Role != "guest" {
		t.Errorf("expected guest session, got %+v", session)
	}
	if res.calls != 0 {
		t.Error("resolver should not run for a guest")
	}
}

func TestSignOut_ExpiresCookie(t *testing.T) {
	sm := newTestSessionManager(t)
	cookies := signInCookies(t, sm, identity.AuthState{Principal: identity.Principal{UID: "u1"}, SignedInAt: time.Now()})

	req := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	if err := sm.SignOut(rec, req); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	out := rec.Result().Cookies()
	if len(out) == 0 || out[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", out)
	}
}
