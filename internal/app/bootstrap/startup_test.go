package bootstrap

import (
	"context"
	"testing"

	profiles "github.com/dalemusser/anomalyhub/internal/app/store/profiles"
	"github.com/dalemusser/anomalyhub/internal/app/system/authstate"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "anomalyhub",
		IdentityBackend: BackendMongo,
		DetectionURL:    "http://localhost:5000",
	}
}

func TestValidateConfig(t *testing.T) {
	core := &config.CoreConfig{Env: "dev"}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*AppConfig) {}},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.IdentityBackend = "ldap" }, wantErr: "unknown identity_backend"},
		{name: "firebase without project", mutate: func(c *AppConfig) {
			c.IdentityBackend = BackendFirebase
			c.FirebaseAPIKey = "k"
		}, wantErr: "firebase_project_id"},
		{name: "firebase without api key", mutate: func(c *AppConfig) {
			c.IdentityBackend = BackendFirebase
			c.FirebaseProjectID = "p"
		}, wantErr: "firebase_api_key"},
		{name: "firebase complete", mutate: func(c *AppConfig) {
			c.IdentityBackend = BackendFirebase
			c.FirebaseProjectID = "p"
			c.FirebaseAPIKey = "k"
		}},
		{name: "detection url not http", mutate: func(c *AppConfig) { c.DetectionURL = "rtsp://cam/stream" }, wantErr: "detection_url"},
		{name: "detection url without host", mutate: func(c *AppConfig) { c.DetectionURL = "http://" }, wantErr: "detection_url"},
		{name: "google id without secret", mutate: func(c *AppConfig) { c.GoogleClientID = "id" }, wantErr: "google_client_secret"},
		{name: "unknown audit mode", mutate: func(c *AppConfig) { c.AuditAdmin = "verbose" }, wantErr: "audit_admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(core, cfg, testLogger())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAppConfig_GoogleEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.GoogleEnabled())
	cfg.GoogleClientID = "id"
	assert.False(t, cfg.GoogleEnabled())
	cfg.GoogleClientSecret = "secret"
	assert.True(t, cfg.GoogleEnabled())
}

func TestBuildIdentity_FirebaseWithoutBackend(t *testing.T) {
	cfg := validConfig()
	cfg.IdentityBackend = BackendFirebase
	_, _, err := buildIdentity(cfg, DBDeps{}, nil, testLogger())
	assert.Error(t, err)
}

func TestBuildIdentity_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.IdentityBackend = "ldap"
	_, _, err := buildIdentity(cfg, DBDeps{}, nil, testLogger())
	assert.Error(t, err)
}

func TestShutdown_EmptyDeps(t *testing.T) {
	err := Shutdown(context.Background(), &config.CoreConfig{}, validConfig(), DBDeps{}, testLogger())
	assert.NoError(t, err)
}

func TestStartup_RequiresServices(t *testing.T) {
	err := Startup(context.Background(), &config.CoreConfig{}, validConfig(), DBDeps{}, testLogger())
	assert.Error(t, err)
}

func TestStartup_MongoBackendEnsuresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validConfig()
	cfg.AdminEmail = "root@example.com"
	cfg.AdminPassword = "secret123"

	// MongoClient is left nil so Shutdown does not disconnect the shared test client.
	deps := DBDeps{MongoDatabase: db, Services: &Services{}}
	require.NoError(t, EnsureSchema(ctx, &config.CoreConfig{}, cfg, deps, testLogger()))
	require.NoError(t, Startup(ctx, &config.CoreConfig{Env: "dev"}, cfg, deps, testLogger()))
	t.Cleanup(func() {
		_ = Shutdown(context.Background(), &config.CoreConfig{}, cfg, deps, testLogger())
	})

	svc := deps.Services
	require.NotNil(t, svc.Identity)
	require.NotNil(t, svc.Resolver)
	require.NotNil(t, svc.Hub)
	require.NotNil(t, svc.OAuthState)
	assert.Nil(t, svc.Relay, "no relay without redis")

	users, res := svc.Identity.GetAllUsers(ctx)
	require.True(t, res.OK, res.Message)
	require.Len(t, users, 1)
	assert.Equal(t, "root@example.com", users[0].Email)
	assert.Equal(t, models.RoleAdmin, users[0].EffectiveRole())

	out, res := svc.Identity.Login(ctx, "root@example.com", "secret123")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, users[0].UID, out.Principal.UID)
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validConfig()
	svc, roles, err := buildIdentity(cfg, DBDeps{MongoDatabase: db}, authstate.NewHub(), testLogger())
	require.NoError(t, err)
	require.NotNil(t, roles.profiles)
	require.NotNil(t, roles.accounts)

	res := svc.Register(ctx, "ada", "ada@example.com", "secret123")
	require.True(t, res.OK, res.Message)

	users, _ := svc.GetAllUsers(ctx)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleUser, users[0].EffectiveRole())

	require.NoError(t, ensureAdmin(ctx, svc, "ada@example.com", "", testLogger()))

	prof, err := profiles.New(db).Get(ctx, users[0].UID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, prof.Role)

	// Running again is a no-op.
	require.NoError(t, ensureAdmin(ctx, svc, "ada@example.com", "", testLogger()))
}

func TestEnsureAdmin_MissingAccountWithoutPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	svc, _, err := buildIdentity(validConfig(), DBDeps{MongoDatabase: db}, authstate.NewHub(), testLogger())
	require.NoError(t, err)

	assert.Error(t, ensureAdmin(ctx, svc, "ghost@example.com", "", testLogger()))
	assert.NoError(t, ensureAdmin(ctx, svc, "", "", testLogger()))
}
