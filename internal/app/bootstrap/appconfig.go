// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Identity backend names accepted by identity_backend.
const (
	BackendMongo    = "mongo"
	BackendFirebase = "firebase"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// ports, TLS, logging and CORS; everything AnomalyHub needs on top of that
// lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Identity backend: "mongo" or "firebase"
	IdentityBackend string

	// Firebase (only used when IdentityBackend is "firebase")
	FirebaseProjectID       string
	FirebaseCredentialsFile string // service account JSON path
	FirebaseCredentialsJSON string // inline service account JSON
	FirebaseAPIKey          string // Web API key for password sign-in and reset mail

	// Session management configuration
	SessionKey        string        // Secret key for signing session cookies (must be strong in production)
	SessionName       string        // Cookie name for sessions (default: anomalyhub-session)
	SessionDomain     string        // Cookie domain (blank means current host)
	SessionMaxAge     time.Duration // Cookie lifetime
	RecentLoginWindow time.Duration // How recent a sign-in must be for password change and account deletion

	// CSRF protection
	CSRFKey string

	// Google OAuth (disabled when the client id is blank)
	GoogleClientID     string
	GoogleClientSecret string

	// Base URL for OAuth callbacks and password reset links
	BaseURL string // e.g., "https://anomalyhub.example.com" or "http://localhost:3000"

	// Detection server
	DetectionURL          string
	DetectionPollInterval time.Duration

	// Redis (optional; enables the cross-instance auth-state relay)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Admin bootstrap
	AdminEmail    string
	AdminPassword string

	// Audit destinations per category (all, db, log, off)
	AuditAuth  string
	AuditAdmin string

	// Per-class operation timeouts (zero keeps the built-in default)
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	TimeoutStream time.Duration
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c AppConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
