// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/anomalyhub/internal/app/store/audit"
	"github.com/dalemusser/anomalyhub/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Destination settings for a category.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// ValidMode reports whether m is a recognised destination setting.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Config holds audit logging configuration.
type Config struct {
	// Auth covers sign-in, sign-out, registration and password events.
	Auth string
	// Admin covers System Users changes.
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to MongoDB (via audit.Store) and to zap, per Config.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. A nil store behaves as "log" for every
// category that would otherwise write to MongoDB.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog.Named("audit"),
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UID != "" {
		fields = append(fields, zap.String("uid", event.UID))
	}
	if event.ActorUID != "" {
		fields = append(fields, zap.String("actor_uid", event.ActorUID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so handlers and tests may run without one.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	}
	if setting == "" {
		setting = ModeAll
	}
	if setting == ModeOff {
		return
	}

	toDB := (setting == ModeAll || setting == ModeDB) && l.store != nil
	if setting == ModeAll || setting == ModeLog || !toDB {
		l.logToZap(event)
	}
	if toDB {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func requestEvent(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in. method is "password" or "google".
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, uid, email, method string) {
	eventType := audit.EventLoginSuccess
	if method == "google" {
		eventType = audit.EventGoogleLogin
	}
	e := requestEvent(r, audit.CategoryAuth, eventType, true)
	e.UID = uid
	e.Email = email
	e.Details = map[string]string{"auth_method": method}
	l.Log(ctx, e)
}

// LoginFailed logs a rejected sign-in with the user-facing reason.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginFailed, false)
	e.Email = email
	e.FailureReason = reason
	l.Log(ctx, e)
}

// LoginRateLimited logs a sign-in or reset attempt refused by the limiter.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, email, limitType string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginFailedRateLimit, false)
	e.Email = email
	e.FailureReason = "rate limit exceeded"
	e.Details = map[string]string{"limit_type": limitType}
	l.Log(ctx, e)
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, uid string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventLogout, true)
	e.UID = uid
	l.Log(ctx, e)
}

// Registered logs a self-service registration.
func (l *Logger) Registered(ctx context.Context, r *http.Request, email string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventRegistered, true)
	e.Email = email
	l.Log(ctx, e)
}

// PasswordChanged logs a password change from Settings.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, uid string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventPasswordChanged, true)
	e.UID = uid
	l.Log(ctx, e)
}

// PasswordChangeFailed logs a refused password change.
func (l *Logger) PasswordChangeFailed(ctx context.Context, r *http.Request, uid, reason string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventPasswordChangeFailed, false)
	e.UID = uid
	e.FailureReason = reason
	l.Log(ctx, e)
}

// PasswordResetRequested logs a forgot-password submission. The outcome
// shown to the user is the same whether or not the account exists.
func (l *Logger) PasswordResetRequested(ctx context.Context, r *http.Request, email string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventPasswordResetRequested, true)
	e.Email = email
	l.Log(ctx, e)
}

// AccountDeleted logs a user deleting their own account.
func (l *Logger) AccountDeleted(ctx context.Context, r *http.Request, uid, email string) {
	e := requestEvent(r, audit.CategoryAuth, audit.EventAccountDeleted, true)
	e.UID = uid
	e.Email = email
	l.Log(ctx, e)
}

// --- Admin Events ---

// UserCreated logs an admin adding a user.
func (l *Logger) UserCreated(ctx context.Context, r *http.Request, actorUID, email, role string) {
	e := requestEvent(r, audit.CategoryAdmin, audit.EventUserCreated, true)
	e.ActorUID = actorUID
	e.Email = email
	e.Details = map[string]string{"role": role}
	l.Log(ctx, e)
}

// UserUpdated logs an admin editing a user's profile.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, actorUID, uid, role string) {
	e := requestEvent(r, audit.CategoryAdmin, audit.EventUserUpdated, true)
	e.ActorUID = actorUID
	e.UID = uid
	e.Details = map[string]string{"role": role}
	l.Log(ctx, e)
}

// UserRemoved logs an admin removing a user from the list.
func (l *Logger) UserRemoved(ctx context.Context, r *http.Request, actorUID, uid string) {
	e := requestEvent(r, audit.CategoryAdmin, audit.EventUserRemoved, true)
	e.ActorUID = actorUID
	e.UID = uid
	l.Log(ctx, e)
}

// String summarises the configuration for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("auth=%s admin=%s", c.Auth, c.Admin)
}
