// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/inputval"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for AnomalyHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: ANOMALYHUB_MONGO_URI, ANOMALYHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "anomalyhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Identity backend
	{Name: "identity_backend", Default: BackendMongo, Desc: "Identity/document backend: 'mongo' or 'firebase'"},
	{Name: "firebase_project_id", Default: "", Desc: "Firebase project id"},
	{Name: "firebase_credentials_file", Default: "", Desc: "Path to a Firebase service account JSON file"},
	{Name: "firebase_credentials_json", Default: "", Desc: "Inline Firebase service account JSON"},
	{Name: "firebase_api_key", Default: "", Desc: "Firebase Web API key (password sign-in and reset mail)"},

	// Sessions
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "anomalyhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime (e.g., 24h, 168h)"},
	{Name: "recent_login_window", Default: "5m", Desc: "How recent a sign-in must be for password change and account deletion"},
	{Name: "csrf_key", Default: "dev-only-csrf-key-change-me-0123456789AB", Desc: "CSRF authentication key (32 bytes in production)"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Base URL for OAuth callbacks and reset links
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL of this server"},

	// Detection server
	{Name: "detection_url", Default: "http://localhost:5000", Desc: "Detection server base URL"},
	{Name: "detection_poll_interval", Default: "2s", Desc: "Dashboard log polling interval"},

	// Redis
	{Name: "redis_addr", Default: "", Desc: "Redis address for the cross-instance auth-state relay (blank disables it)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of the admin user (promotes/creates on startup)"},
	{Name: "admin_password", Default: "", Desc: "Password used when the admin account has to be created"},

	// Audit logging: all (MongoDB + log), db, log, off
	{Name: "audit_auth", Default: "all", Desc: "Destination for authentication audit events: all, db, log, off"},
	{Name: "audit_admin", Default: "all", Desc: "Destination for System Users audit events: all, db, log, off"},

	// Timeouts
	{Name: "timeouts_ping", Default: timeouts.DefaultPing.String(), Desc: "Timeout for health pings"},
	{Name: "timeouts_short", Default: timeouts.DefaultShort.String(), Desc: "Timeout for single reads"},
	{Name: "timeouts_medium", Default: timeouts.DefaultMedium.String(), Desc: "Timeout for single writes and provider calls"},
	{Name: "timeouts_long", Default: timeouts.DefaultLong.String(), Desc: "Timeout for multi-step operations"},
	{Name: "timeouts_stream", Default: timeouts.DefaultStream.String(), Desc: "Upper bound on a proxied video stream"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, ANOMALYHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ANOMALYHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		IdentityBackend:         strings.ToLower(strings.TrimSpace(appValues.String("identity_backend"))),
		FirebaseProjectID:       appValues.String("firebase_project_id"),
		FirebaseCredentialsFile: appValues.String("firebase_credentials_file"),
		FirebaseCredentialsJSON: appValues.String("firebase_credentials_json"),
		FirebaseAPIKey:          appValues.String("firebase_api_key"),

		SessionKey:        appValues.String("session_key"),
		SessionName:       appValues.String("session_name"),
		SessionDomain:     appValues.String("session_domain"),
		SessionMaxAge:     appValues.Duration("session_max_age", 24*time.Hour),
		RecentLoginWindow: appValues.Duration("recent_login_window", identity.DefaultRecentLoginWindow),
		CSRFKey:           appValues.String("csrf_key"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		BaseURL: strings.TrimRight(appValues.String("base_url"), "/"),

		DetectionURL:          strings.TrimRight(appValues.String("detection_url"), "/"),
		DetectionPollInterval: appValues.Duration("detection_poll_interval", 2*time.Second),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		AdminEmail:    strings.TrimSpace(appValues.String("admin_email")),
		AdminPassword: appValues.String("admin_password"),

		AuditAuth:  strings.ToLower(strings.TrimSpace(appValues.String("audit_auth"))),
		AuditAdmin: strings.ToLower(strings.TrimSpace(appValues.String("audit_admin"))),

		TimeoutPing:   appValues.Duration("timeouts_ping", timeouts.DefaultPing),
		TimeoutShort:  appValues.Duration("timeouts_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeouts_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeouts_long", timeouts.DefaultLong),
		TimeoutStream: appValues.Duration("timeouts_stream", timeouts.DefaultStream),
	}
	if appCfg.IdentityBackend == "" {
		appCfg.IdentityBackend = BackendMongo
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Problems that would otherwise only surface on the first request (a bad
// detection URL, firebase mode without a project) are caught here.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.IdentityBackend {
	case BackendMongo:
	case BackendFirebase:
		if appCfg.FirebaseProjectID == "" {
			return fmt.Errorf("identity_backend=firebase requires firebase_project_id")
		}
		if appCfg.FirebaseAPIKey == "" {
			return fmt.Errorf("identity_backend=firebase requires firebase_api_key")
		}
	default:
		return fmt.Errorf("unknown identity_backend %q (want %q or %q)",
			appCfg.IdentityBackend, BackendMongo, BackendFirebase)
	}

	if err := validateHTTPURL(appCfg.DetectionURL); err != nil {
		logger.Error("invalid detection URL", zap.String("detection_url", appCfg.DetectionURL), zap.Error(err))
		return fmt.Errorf("invalid detection_url: %w", err)
	}

	for key, mode := range map[string]string{"audit_auth": appCfg.AuditAuth, "audit_admin": appCfg.AuditAdmin} {
		if mode != "" && !auditlog.ValidMode(mode) {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, mode)
		}
	}

	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret == "" {
		return fmt.Errorf("google_client_id is set but google_client_secret is blank")
	}

	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		logger.Warn("running in prod with the development session key")
	}

	return nil
}

func validateHTTPURL(raw string) error {
	if !inputval.IsValidHTTPURL(raw) {
		return fmt.Errorf("want an absolute http or https URL, got %q", raw)
	}
	return nil
}
