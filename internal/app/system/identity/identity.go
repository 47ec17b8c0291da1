// Package identity is the app's single entry point into the identity and
// document backend. Handlers call Service; Service talks to the backend
// through the Accounts, Profiles and Alerts interfaces, which the mongo
// stores and the firebase adapter both implement.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/anomalyhub/internal/domain/models"
)

// Backend errors. Implementations translate provider failures into these.
var (
	ErrEmailInUse          = errors.New("identity: email already in use")
	ErrInvalidCredential   = errors.New("identity: invalid credential")
	ErrWrongPassword       = errors.New("identity: wrong password")
	ErrWeakPassword        = errors.New("identity: weak password")
	ErrRequiresRecentLogin = errors.New("identity: requires recent login")
	ErrUserNotFound        = errors.New("identity: user not found")
	ErrProfileNotFound     = errors.New("identity: profile not found")
	ErrAlertNotFound       = errors.New("identity: alert not found")
	ErrResetTokenInvalid   = errors.New("identity: reset token invalid or expired")

	// Raised by Service before any backend call.
	ErrMissingCurrentPassword = errors.New("identity: current password required")
	ErrSamePassword           = errors.New("identity: new password equals current")
)

// MinPasswordLength is the shortest password accepted anywhere in the app.
const MinPasswordLength = 6

// Principal is the identity provider's view of a user.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// AuthState is a signed-in principal plus when it last proved its
// credentials. Sensitive operations compare SignedInAt against the
// recent-login window.
type AuthState struct {
	Principal  Principal
	SignedInAt time.Time
}

// Fresh reports whether the sign-in happened within window of now.
func (s *AuthState) Fresh(now time.Time, window time.Duration) bool {
	if s == nil || s.SignedInAt.IsZero() {
		return false
	}
	return now.Sub(s.SignedInAt) <= window
}

// NewAccount is the input to account creation. An empty Password creates an
// account that can only sign in through a federated provider.
type NewAccount struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

// ProfilePatch is the admin edit of a profile. Password is never part of it.
type ProfilePatch struct {
	Username string
	Email    string
	Role     string
}

// Accounts is the credential side of the backend.
type Accounts interface {
	Create(ctx context.Context, in NewAccount) (Principal, error)
	VerifyPassword(ctx context.Context, email, password string) (Principal, error)
	Get(ctx context.Context, uid string) (Principal, error)
	FindByEmail(ctx context.Context, email string) (Principal, error)
	UpdatePassword(ctx context.Context, uid, password string) error
	Delete(ctx context.Context, uid string) error
	SendPasswordReset(ctx context.Context, email string) error

	// Secondary opens an authentication scope that is independent of any
	// signed-in session, for creating accounts on someone else's behalf.
	Secondary(ctx context.Context) (AuthContext, error)
}

// AuthContext is an isolated authentication scope. Callers must SignOut and
// Close it on every exit path.
type AuthContext interface {
	Create(ctx context.Context, in NewAccount) (Principal, error)
	SignOut(ctx context.Context) error
	Close() error
}

// Profiles is the "users" document collection.
type Profiles interface {
	Get(ctx context.Context, uid string) (models.UserProfile, error)
	// Upsert writes p. With merge, only non-empty fields overwrite what is
	// stored; without it the document is replaced.
	Upsert(ctx context.Context, p models.UserProfile, merge bool) error
	List(ctx context.Context) ([]models.UserProfile, error)
	Update(ctx context.Context, uid string, patch ProfilePatch) error
	Delete(ctx context.Context, uid string) error
}

// Alerts is the per-user alert history.
type Alerts interface {
	List(ctx context.Context, uid string) ([]models.Alert, error)
	Delete(ctx context.Context, uid, id string) error
	// Subscribe emits the full list, newest first, once immediately and again
	// after every change, until ctx ends. The channel is closed on exit.
	Subscribe(ctx context.Context, uid string) (<-chan []models.Alert, error)
}

// PasswordResetter is implemented by backends that complete a password
// reset inside this app. Firebase sends its own reset page and does not.
type PasswordResetter interface {
	CompletePasswordReset(ctx context.Context, token, password string) error
}
