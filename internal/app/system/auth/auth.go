package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/resolver"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	userEmailKey = "user_email"
	userNameKey  = "user_name"
	userPhotoKey = "user_photo"
	authTimeKey  = "auth_time" // unix seconds of the last credential check
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the signed-in user as handlers see it.
type SessionUser struct {
	ID         string
	Name       string
	Email      string
	PhotoURL   string
	Role       string
	SignedInAt time.Time
}

// AuthState converts u back into the identity layer's view of a session.
func (u *SessionUser) AuthState() *identity.AuthState {
	if u == nil {
		return nil
	}
	return &identity.AuthState{
		Principal: identity.Principal{
			UID:         u.ID,
			Email:       u.Email,
			DisplayName: u.Name,
			PhotoURL:    u.PhotoURL,
		},
		SignedInAt: u.SignedInAt,
	}
}

type ctxKey string

const (
	currentUserKey    ctxKey = "currentUser"
	currentSessionKey ctxKey = "currentSession"
)

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// CurrentSession returns the resolved session, or a guest session when
// LoadSessionUser has not run.
func CurrentSession(r *http.Request) resolver.Session {
	if s, ok := r.Context().Value(currentSessionKey).(resolver.Session); ok {
		return s
	}
	return resolver.Session{Role: models.RoleGuest}
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// RoleResolver maps a principal to a session with a role.
type RoleResolver interface {
	State(ctx context.Context, p *identity.Principal) resolver.Session
}

// SessionManager owns the cookie store and the request-scoped user.
type SessionManager struct {
	store    *sessions.CookieStore
	name     string
	log      *zap.Logger
	resolver RoleResolver
}

// NewSessionManager builds the cookie store. In production (secure=true)
// cookies are Secure with SameSite=Lax; over plain http in dev, Secure is
// off so browsers accept them.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "anomalyhub-session"
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(maxAge.Seconds()))

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetResolver installs the role resolver used by LoadSessionUser.
func (sm *SessionManager) SetResolver(r RoleResolver) {
	sm.resolver = r
}

func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// GetSession returns the named session. On a decode error gorilla still
// returns a fresh session, so callers can keep going.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// SignIn writes st into the session cookie.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, st identity.AuthState) error {
	sess, err := sm.GetSession(r)
	if err != nil && !isStaleCookie(err) {
		return err
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = st.Principal.UID
	sess.Values[userEmailKey] = st.Principal.Email
	sess.Values[userNameKey] = st.Principal.DisplayName
	sess.Values[userPhotoKey] = st.Principal.PhotoURL
	sess.Values[authTimeKey] = st.SignedInAt.Unix()
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil && !isStaleCookie(err) {
		sm.log.Warn("session decode failed during sign-out", zap.Error(err))
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	if opts := sm.store.Options; opts != nil {
		cp := *opts
		sess.Options = &cp
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser resolves the cookie into a session (and, once the role is
// known, a SessionUser) on the request context.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil {
			if isStaleCookie(err) {
				sm.log.Debug("stale session cookie ignored", zap.Error(err))
			} else {
				sm.log.Warn("session load failed", zap.Error(err))
			}
		}

		state := resolver.Session{Role: models.RoleGuest}
		var user *SessionUser

		if sess != nil {
			if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth && getString(sess, userIDKey) != "" {
				p := &identity.Principal{
					UID:         getString(sess, userIDKey),
					Email:       getString(sess, userEmailKey),
					DisplayName: getString(sess, userNameKey),
					PhotoURL:    getString(sess, userPhotoKey),
				}
				if sm.resolver != nil {
					state = sm.resolver.State(r.Context(), p)
				} else {
					state = resolver.Session{User: p, Role: models.RoleUser}
				}
				if state.Revoked {
					// The account behind this cookie is gone; stop presenting it.
					if err := sm.SignOut(w, r); err != nil {
						sm.log.Warn("clear revoked session failed", zap.Error(err), zap.String("uid", p.UID))
					}
				} else if !state.Loading {
					user = &SessionUser{
						ID:         p.UID,
						Name:       p.DisplayName,
						Email:      p.Email,
						PhotoURL:   p.PhotoURL,
						Role:       state.Role,
						SignedInAt: getUnix(sess, authTimeKey),
					}
				}
			}
		}

		ctx := context.WithValue(r.Context(), currentSessionKey, state)
		if user != nil {
			ctx = context.WithValue(ctx, currentUserKey, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		denyUnauthenticated(w, r)
	})
}

// RequireRole ensures the signed-in user has one of the allowed roles.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				denyUnauthenticated(w, r)
				return
			}

			if _, has := set[strings.ToLower(u.Role)]; !has {
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/forbidden")
					w.WriteHeader(http.StatusForbidden)
					return
				}
				if wantsHTML(r) {
					http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(r.URL.RequestURI())

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// WithTestUser injects u (and a matching resolved session) into the request
// context, bypassing cookies. For tests.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	p := &identity.Principal{UID: u.ID, Email: u.Email, DisplayName: u.Name, PhotoURL: u.PhotoURL}
	ctx := context.WithValue(r.Context(), currentSessionKey, resolver.Session{User: p, Role: u.Role})
	ctx = context.WithValue(ctx, currentUserKey, u)
	return r.WithContext(ctx)
}

// helpers

func isStaleCookie(err error) bool {
	var scErr securecookie.Error
	return errors.As(err, &scErr) && scErr.IsDecode()
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func getUnix(s *sessions.Session, key string) time.Time {
	if v, ok := s.Values[key].(int64); ok && v > 0 {
		return time.Unix(v, 0)
	}
	return time.Time{}
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
