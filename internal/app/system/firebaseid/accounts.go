package firebaseid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"go.uber.org/zap"
	"google.golang.org/api/identitytoolkit/v3"
)

// Accounts implements identity.Accounts on Firebase Authentication.
type Accounts struct {
	b *Backend
}

func principalOf(u *auth.UserRecord) identity.Principal {
	if u == nil || u.UserInfo == nil {
		return identity.Principal{}
	}
	return identity.Principal{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

func createUser(ctx context.Context, client *auth.Client, in identity.NewAccount) (identity.Principal, error) {
	if in.Password != "" && len(in.Password) < identity.MinPasswordLength {
		return identity.Principal{}, identity.ErrWeakPassword
	}
	params := (&auth.UserToCreate{}).Email(strings.TrimSpace(in.Email))
	if in.Password != "" {
		params = params.Password(in.Password)
	}
	if in.DisplayName != "" {
		params = params.DisplayName(in.DisplayName)
	}
	if in.PhotoURL != "" {
		params = params.PhotoURL(in.PhotoURL)
	}
	u, err := client.CreateUser(ctx, params)
	if err != nil {
		return identity.Principal{}, adminError(err)
	}
	return principalOf(u), nil
}

func (a *Accounts) Create(ctx context.Context, in identity.NewAccount) (identity.Principal, error) {
	return createUser(ctx, a.b.Auth, in)
}

// VerifyPassword signs in through the Identity Toolkit REST API. The ID
// token it returns is discarded; the app keeps its own session.
func (a *Accounts) VerifyPassword(ctx context.Context, email, password string) (identity.Principal, error) {
	resp, err := a.b.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return identity.Principal{}, toolkitError(err)
	}
	// The toolkit response omits the photo, so read the full record.
	u, err := a.b.Auth.GetUser(ctx, resp.LocalId)
	if err != nil {
		return identity.Principal{
			UID:         resp.LocalId,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
		}, nil
	}
	return principalOf(u), nil
}

func (a *Accounts) Get(ctx context.Context, uid string) (identity.Principal, error) {
	u, err := a.b.Auth.GetUser(ctx, uid)
	if err != nil {
		return identity.Principal{}, adminError(err)
	}
	return principalOf(u), nil
}

func (a *Accounts) FindByEmail(ctx context.Context, email string) (identity.Principal, error) {
	u, err := a.b.Auth.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return identity.Principal{}, adminError(err)
	}
	return principalOf(u), nil
}

func (a *Accounts) UpdatePassword(ctx context.Context, uid, password string) error {
	if len(password) < identity.MinPasswordLength {
		return identity.ErrWeakPassword
	}
	_, err := a.b.Auth.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(password))
	return adminError(err)
}

func (a *Accounts) Delete(ctx context.Context, uid string) error {
	return adminError(a.b.Auth.DeleteUser(ctx, uid))
}

// SendPasswordReset has Firebase mail its own reset link.
func (a *Accounts) SendPasswordReset(ctx context.Context, email string) error {
	_, err := a.b.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       strings.TrimSpace(email),
	}).Context(ctx).Do()
	return toolkitError(err)
}

// Secondary builds a second firebase.App with its own auth client, so an
// admin creating accounts never shares client state with anyone's session.
func (a *Accounts) Secondary(ctx context.Context) (identity.AuthContext, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: a.b.cfg.ProjectID}, a.b.cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("secondary firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("secondary app.Auth: %w", err)
	}
	return &secondary{app: app, client: client, log: a.b.log}, nil
}

type secondary struct {
	log *zap.Logger

	mu      sync.Mutex
	app     *firebase.App
	client  *auth.Client
	created *identity.Principal
}

func (s *secondary) Create(ctx context.Context, in identity.NewAccount) (identity.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return identity.Principal{}, errors.New("secondary auth context is closed")
	}
	p, err := createUser(ctx, s.client, in)
	if err != nil {
		return identity.Principal{}, err
	}
	s.created = &p
	return p, nil
}

func (s *secondary) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created != nil {
		s.log.Debug("secondary auth signed out", zap.String("uid", s.created.UID))
	}
	s.created = nil
	return nil
}

// Close drops the secondary app and client.
func (s *secondary) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app = nil
	s.client = nil
	s.created = nil
	return nil
}
