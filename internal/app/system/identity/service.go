// internal/app/system/identity/service.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/authstate"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"go.uber.org/zap"
)

// Publisher receives auth-state transitions. *authstate.Hub satisfies it.
type Publisher interface {
	Publish(authstate.Event)
}

// Options tunes a Service. Zero values take defaults.
type Options struct {
	RecentLoginWindow time.Duration
	Now               func() time.Time
}

const DefaultRecentLoginWindow = 5 * time.Minute

// Service implements the account, profile and alert operations the app
// exposes. It is constructed once at startup and passed to handlers.
type Service struct {
	accounts Accounts
	profiles Profiles
	alerts   Alerts
	events   Publisher
	log      *zap.Logger
	window   time.Duration
	now      func() time.Time
}

func NewService(accounts Accounts, profiles Profiles, alerts Alerts, events Publisher, logger *zap.Logger, opts Options) *Service {
	s := &Service{
		accounts: accounts,
		profiles: profiles,
		alerts:   alerts,
		events:   events,
		log:      logger,
		window:   opts.RecentLoginWindow,
		now:      opts.Now,
	}
	if s.window <= 0 {
		s.window = DefaultRecentLoginWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// LoginOutcome is a successful sign-in: who, with which role, and the
// AuthState the caller should persist in its session.
type LoginOutcome struct {
	Principal Principal
	Role      string
	State     AuthState
}

// GoogleIdentity is the subset of Google userinfo used for sign-in.
type GoogleIdentity struct {
	Email   string
	Name    string
	Picture string
}

// NewUserEntry is the admin add-user form, minus the password.
type NewUserEntry struct {
	Username string
	Email    string
	Role     string
}

// AvatarURL is the generated initials avatar for a username.
func AvatarURL(username string) string {
	return "https://api.dicebear.com/9.x/initials/svg?seed=" + url.QueryEscape(username)
}

func (s *Service) publish(kind authstate.Kind, uid string) {
	if s.events == nil || uid == "" {
		return
	}
	s.events.Publish(authstate.Event{Kind: kind, UID: uid})
}

func (s *Service) stamp() *time.Time {
	t := s.now().UTC()
	return &t
}

/*─────────────────────────────────────────────────────────────────────────────*
| Self-service                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Register creates an account and its profile. It never leaves the new user
// signed in; the caller must send them to the login form.
func (s *Service) Register(ctx context.Context, username, email, password string) Result {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Failure(MsgMissingRegisterField)
	}
	if len(password) < MinPasswordLength {
		return Failure(MsgPasswordTooShort)
	}

	p, err := s.accounts.Create(ctx, NewAccount{
		Email:       email,
		Password:    password,
		DisplayName: username,
		PhotoURL:    AvatarURL(username),
	})
	if err != nil {
		s.log.Warn("register: create account", zap.Error(err), zap.String("email", email))
		if errors.Is(err, ErrWeakPassword) {
			return Failure(MsgPasswordTooShort)
		}
		return Failure(Humanize(err))
	}

	profile := models.UserProfile{
		UID:       p.UID,
		Username:  username,
		Email:     p.Email,
		PhotoURL:  p.PhotoURL,
		Role:      models.RoleUser,
		CreatedAt: s.stamp(),
	}
	if err := s.profiles.Upsert(ctx, profile, false); err != nil {
		s.log.Error("register: write profile", zap.Error(err), zap.String("uid", p.UID))
		return Failure(MsgGeneric)
	}

	// Registration must not authenticate.
	s.publish(authstate.SignedOut, p.UID)
	return Success("Account created! Please log in.")
}

// Login verifies credentials and resolves the role, repairing a missing
// profile with role "user". It returns nil and a failure message when the
// sign-in does not go through.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginOutcome, Result) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, Failure(MsgMissingLoginFields)
	}

	p, err := s.accounts.VerifyPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrWrongPassword) || errors.Is(err, ErrUserNotFound) {
			err = ErrInvalidCredential
		}
		s.log.Warn("login failed", zap.Error(err), zap.String("email", email))
		return nil, Failure(Humanize(err))
	}

	role, err := s.ensureProfile(ctx, p)
	if err != nil {
		s.log.Error("login: read profile", zap.Error(err), zap.String("uid", p.UID))
		return nil, Failure(MsgGeneric)
	}

	s.publish(authstate.SignedIn, p.UID)
	return &LoginOutcome{
		Principal: p,
		Role:      role,
		State:     AuthState{Principal: p, SignedInAt: s.now()},
	}, Success("Welcome back!")
}

// ensureProfile returns the stored role, creating the profile when absent.
func (s *Service) ensureProfile(ctx context.Context, p Principal) (string, error) {
	prof, err := s.profiles.Get(ctx, p.UID)
	if err == nil {
		return prof.EffectiveRole(), nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return "", err
	}

	username := p.DisplayName
	if username == "" {
		username = "User"
	}
	repaired := models.UserProfile{
		UID:       p.UID,
		Username:  username,
		Email:     p.Email,
		PhotoURL:  p.PhotoURL,
		Role:      models.RoleUser,
		CreatedAt: s.stamp(),
	}
	if err := s.profiles.Upsert(ctx, repaired, false); err != nil {
		return "", err
	}
	s.log.Info("repaired missing profile", zap.String("uid", p.UID))
	return models.RoleUser, nil
}

// SignInWithGoogle links a verified Google identity to an account, creating
// the account on first use, and merges the Google name, email and photo into
// the profile. createdAt is re-stamped on every Google sign-in.
func (s *Service) SignInWithGoogle(ctx context.Context, g GoogleIdentity) (*LoginOutcome, Result) {
	email := strings.TrimSpace(g.Email)
	if email == "" {
		return nil, Failure(MsgGeneric)
	}

	p, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		p, err = s.accounts.Create(ctx, NewAccount{
			Email:       email,
			DisplayName: g.Name,
			PhotoURL:    g.Picture,
		})
	}
	if err != nil {
		s.log.Error("google sign-in: resolve account", zap.Error(err), zap.String("email", email))
		return nil, Failure(MsgGeneric)
	}

	name := g.Name
	if name == "" {
		name = p.DisplayName
	}
	photo := g.Picture
	if photo == "" {
		photo = p.PhotoURL
	}
	if err := s.profiles.Upsert(ctx, models.UserProfile{
		UID:       p.UID,
		Username:  name,
		Email:     email,
		PhotoURL:  photo,
		CreatedAt: s.stamp(),
	}, true); err != nil {
		s.log.Error("google sign-in: merge profile", zap.Error(err), zap.String("uid", p.UID))
		return nil, Failure(MsgGeneric)
	}

	role := models.RoleUser
	if prof, err := s.profiles.Get(ctx, p.UID); err == nil {
		role = prof.EffectiveRole()
	} else {
		s.log.Warn("google sign-in: read role", zap.Error(err), zap.String("uid", p.UID))
	}

	p.DisplayName = name
	p.PhotoURL = photo
	s.publish(authstate.SignedIn, p.UID)
	return &LoginOutcome{
		Principal: p,
		Role:      role,
		State:     AuthState{Principal: p, SignedInAt: s.now()},
	}, Success("Signed in with Google.")
}

// Logout ends the session identified by state.
func (s *Service) Logout(state *AuthState) {
	if state == nil {
		return
	}
	s.publish(authstate.SignedOut, state.Principal.UID)
}

// ForgotPassword asks the backend to send a reset email. An unknown address
// gets the same answer as a known one.
func (s *Service) ForgotPassword(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return Failure(MsgMissingEmail)
	}
	if err := s.accounts.SendPasswordReset(ctx, email); err != nil && !errors.Is(err, ErrUserNotFound) {
		s.log.Error("send password reset", zap.Error(err), zap.String("email", email))
		return Failure(MsgGeneric)
	}
	return Success("Password reset email sent! Check your inbox.")
}

// CompletePasswordReset sets a new password from an emailed reset token.
func (s *Service) CompletePasswordReset(ctx context.Context, token, password string) Result {
	if strings.TrimSpace(token) == "" {
		return Failure(MsgResetInvalid)
	}
	if len(password) < MinPasswordLength {
		return Failure(MsgPasswordTooShort)
	}
	resetter, ok := s.accounts.(PasswordResetter)
	if !ok {
		return Failure(MsgResetInvalid)
	}
	if err := resetter.CompletePasswordReset(ctx, token, password); err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			return Failure(MsgResetInvalid)
		}
		if errors.Is(err, ErrWeakPassword) {
			return Failure(MsgPasswordTooShort)
		}
		s.log.Error("complete password reset", zap.Error(err))
		return Failure(MsgGeneric)
	}
	return Success("Password updated. Please log in.")
}

// UpdateUserPassword re-authenticates with current and then sets next. The
// three input checks run before any backend call. A successful
// re-authentication refreshes state.SignedInAt.
func (s *Service) UpdateUserPassword(ctx context.Context, state *AuthState, current, next string) Result {
	switch {
	case current == "":
		return Failure(MsgMissingCurrent)
	case len(next) < MinPasswordLength:
		return Failure(MsgNewPasswordTooShort)
	case next == current:
		return Failure(MsgSamePassword)
	}
	if state == nil || state.Principal.UID == "" {
		return Failure(MsgRecentLoginPassword)
	}

	if _, err := s.accounts.VerifyPassword(ctx, state.Principal.Email, current); err != nil {
		if errors.Is(err, ErrWrongPassword) || errors.Is(err, ErrInvalidCredential) {
			return Failure(MsgWrongPassword)
		}
		s.log.Warn("password change: re-authenticate", zap.Error(err), zap.String("uid", state.Principal.UID))
		return Failure(Humanize(err))
	}
	state.SignedInAt = s.now()

	if err := s.accounts.UpdatePassword(ctx, state.Principal.UID, next); err != nil {
		s.log.Warn("password change: update", zap.Error(err), zap.String("uid", state.Principal.UID))
		switch {
		case errors.Is(err, ErrRequiresRecentLogin):
			return Failure(MsgRecentLoginPassword)
		case errors.Is(err, ErrWeakPassword):
			return Failure(MsgNewPasswordTooShort)
		}
		return Failure(MsgGeneric)
	}
	return Success("Password updated successfully!")
}

// DeleteAccount removes the signed-in principal's account. It refuses when
// the sign-in is older than the recent-login window. The profile document is
// left in place.
func (s *Service) DeleteAccount(ctx context.Context, state *AuthState) Result {
	if state == nil || state.Principal.UID == "" {
		return Failure(MsgRecentLoginDelete)
	}
	if !state.Fresh(s.now(), s.window) {
		return Failure(MsgRecentLoginDelete)
	}

	if err := s.accounts.Delete(ctx, state.Principal.UID); err != nil {
		s.log.Warn("delete account", zap.Error(err), zap.String("uid", state.Principal.UID))
		if errors.Is(err, ErrRequiresRecentLogin) {
			return Failure(MsgRecentLoginDelete)
		}
		return Failure(MsgGeneric)
	}

	s.publish(authstate.Deleted, state.Principal.UID)
	return Success("Your account has been deleted.")
}

// Profile reads one profile.
func (s *Service) Profile(ctx context.Context, uid string) (models.UserProfile, error) {
	return s.profiles.Get(ctx, uid)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Admin user management                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// GetAllUsers lists every profile, newest first. Profiles without createdAt
// sort as the oldest and are never dropped.
func (s *Service) GetAllUsers(ctx context.Context) ([]models.UserProfile, Result) {
	list, err := s.profiles.List(ctx)
	if err != nil {
		s.log.Error("list users", zap.Error(err))
		return []models.UserProfile{}, Failure("Failed to load users.")
	}
	SortByCreatedDesc(list)
	return list, Success("")
}

// SortByCreatedDesc orders profiles by createdAt descending, missing values
// last. The sort is stable.
func SortByCreatedDesc(list []models.UserProfile) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAtOrEpoch().After(list[j].CreatedAtOrEpoch())
	})
}

// CreateUserEntry creates an account and profile for someone else. The
// account is created in a secondary auth context so admin's session is never
// touched; that context is signed out and closed on every path.
func (s *Service) CreateUserEntry(ctx context.Context, admin *AuthState, in NewUserEntry, password string) (res Result) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" {
		return Failure(MsgMissingRegisterField)
	}
	if len(password) < MinPasswordLength {
		return Failure(MsgPasswordTooShort)
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if !models.IsValidRole(role) {
		role = models.RoleUser
	}

	adminUID := ""
	if admin != nil {
		adminUID = admin.Principal.UID
	}

	sec, err := s.accounts.Secondary(ctx)
	if err != nil {
		s.log.Error("create user: open secondary auth", zap.Error(err), zap.String("admin", adminUID))
		return Failure(MsgCreateUserFailed)
	}
	defer func() {
		if err := sec.SignOut(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("create user: sign out secondary auth", zap.Error(err))
		}
		if err := sec.Close(); err != nil {
			s.log.Warn("create user: close secondary auth", zap.Error(err))
		}
	}()

	p, err := sec.Create(ctx, NewAccount{
		Email:       in.Email,
		Password:    password,
		DisplayName: in.Username,
		PhotoURL:    AvatarURL(in.Username),
	})
	if err != nil {
		s.log.Warn("create user: create account", zap.Error(err), zap.String("admin", adminUID), zap.String("email", in.Email))
		switch {
		case errors.Is(err, ErrEmailInUse):
			return Failure(MsgEmailInUse)
		case errors.Is(err, ErrWeakPassword):
			return Failure(MsgPasswordTooShort)
		}
		return Failure(MsgCreateUserFailed)
	}

	if err := s.profiles.Upsert(ctx, models.UserProfile{
		UID:       p.UID,
		Username:  in.Username,
		Email:     p.Email,
		PhotoURL:  p.PhotoURL,
		Role:      role,
		CreatedAt: s.stamp(),
	}, false); err != nil {
		s.log.Error("create user: write profile", zap.Error(err), zap.String("uid", p.UID))
		return Failure(MsgCreateUserFailed)
	}

	s.log.Info("user created", zap.String("admin", adminUID), zap.String("uid", p.UID), zap.String("role", role))
	return Success("User created successfully")
}

// UpdateUserEntry edits a profile's username, email and role.
func (s *Service) UpdateUserEntry(ctx context.Context, uid string, patch ProfilePatch) Result {
	patch.Username = strings.TrimSpace(patch.Username)
	patch.Email = strings.TrimSpace(patch.Email)
	patch.Role = strings.ToLower(strings.TrimSpace(patch.Role))
	if patch.Username == "" || patch.Email == "" {
		return Failure(MsgMissingRegisterField)
	}
	if !models.IsValidRole(patch.Role) {
		return Failure("Please choose a valid role.")
	}

	if err := s.profiles.Update(ctx, uid, patch); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Failure("User not found.")
		}
		s.log.Error("update user", zap.Error(err), zap.String("uid", uid))
		return Failure("Failed to update user.")
	}
	s.publish(authstate.ProfileChanged, uid)
	return Success("User updated successfully")
}

// DeleteUserEntry removes the profile document only; the account stays.
func (s *Service) DeleteUserEntry(ctx context.Context, uid string) Result {
	if err := s.profiles.Delete(ctx, uid); err != nil && !errors.Is(err, ErrProfileNotFound) {
		s.log.Error("delete user", zap.Error(err), zap.String("uid", uid))
		return Failure("Failed to remove user.")
	}
	s.publish(authstate.ProfileChanged, uid)
	return Success(MsgUserRemoved)
}

// EnsureAdmin makes the profile for email an admin. When no account exists
// and password is set, the account is created first. Used at startup.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	p, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		if password == "" {
			return fmt.Errorf("admin %s has no account and no password was configured", email)
		}
		username := strings.SplitN(email, "@", 2)[0]
		p, err = s.accounts.Create(ctx, NewAccount{
			Email:       email,
			Password:    password,
			DisplayName: username,
			PhotoURL:    AvatarURL(username),
		})
	}
	if err != nil {
		return fmt.Errorf("ensure admin account: %w", err)
	}

	prof, err := s.profiles.Get(ctx, p.UID)
	switch {
	case err == nil && prof.EffectiveRole() == models.RoleAdmin:
		return nil
	case err == nil:
		prof.Role = models.RoleAdmin
	case errors.Is(err, ErrProfileNotFound):
		username := p.DisplayName
		if username == "" {
			username = "User"
		}
		prof = models.UserProfile{
			UID:       p.UID,
			Username:  username,
			Email:     p.Email,
			PhotoURL:  p.PhotoURL,
			Role:      models.RoleAdmin,
			CreatedAt: s.stamp(),
		}
	default:
		return fmt.Errorf("ensure admin profile: %w", err)
	}
	if err := s.profiles.Upsert(ctx, prof, false); err != nil {
		return fmt.Errorf("ensure admin profile: %w", err)
	}
	s.publish(authstate.ProfileChanged, p.UID)
	s.log.Info("admin ensured", zap.String("uid", p.UID), zap.String("email", email))
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Alerts                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (s *Service) ListAlerts(ctx context.Context, uid string) ([]models.Alert, error) {
	return s.alerts.List(ctx, uid)
}

func (s *Service) SubscribeAlerts(ctx context.Context, uid string) (<-chan []models.Alert, error) {
	return s.alerts.Subscribe(ctx, uid)
}

// DeleteAlert removes one of uid's own alerts.
func (s *Service) DeleteAlert(ctx context.Context, uid, id string) Result {
	if err := s.alerts.Delete(ctx, uid, id); err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return Failure("Alert not found.")
		}
		s.log.Error("delete alert", zap.Error(err), zap.String("uid", uid), zap.String("alert", id))
		return Failure("Failed to delete alert.")
	}
	return Success("Alert deleted.")
}
