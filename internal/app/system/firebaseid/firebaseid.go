// Package firebaseid implements the identity backend on Firebase: accounts
// through the Admin SDK and the Identity Toolkit REST API, and profiles and
// alerts in Firestore.
package firebaseid

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Config selects the Firebase project and credentials. CredentialsFile
// wins over CredentialsJSON; with neither, Application Default Credentials
// are used.
type Config struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
	APIKey          string // Web API key, required for password sign-in and reset mail
}

func (c Config) clientOptions() []option.ClientOption {
	switch {
	case c.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
	case c.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.CredentialsJSON))}
	}
	return nil
}

// Backend bundles the Firebase clients. Accounts, Profiles and Alerts
// share them.
type Backend struct {
	cfg       Config
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
	toolkit   *identitytoolkit.Service
	log       *zap.Logger
}

// New initializes the Firebase app and its auth, Firestore and Identity
// Toolkit clients.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase: project id is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("firebase: web api key is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Auth: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}
	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("identitytoolkit.NewService: %w", err)
	}

	logger.Info("firebase backend initialized", zap.String("project", cfg.ProjectID))
	return &Backend{
		cfg:       cfg,
		App:       app,
		Auth:      authClient,
		Firestore: fs,
		toolkit:   toolkit,
		log:       logger.Named("firebase"),
	}, nil
}

// Accounts returns the identity.Accounts view of b.
func (b *Backend) Accounts() *Accounts { return &Accounts{b: b} }

// Profiles returns the identity.Profiles view of b.
func (b *Backend) Profiles() *Profiles { return &Profiles{fs: b.Firestore} }

// Alerts returns the identity.Alerts view of b.
func (b *Backend) Alerts() *Alerts { return &Alerts{fs: b.Firestore, log: b.log.Named("alerts")} }

// Close releases the Firestore client. The auth client holds no resources.
func (b *Backend) Close() error {
	if b == nil || b.Firestore == nil {
		return nil
	}
	return b.Firestore.Close()
}
