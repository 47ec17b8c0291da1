// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/anomalyhub/internal/app/store/oauthstate"
	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/authstate"
	"github.com/dalemusser/anomalyhub/internal/app/system/firebaseid"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/anomalyhub/internal/app/system/resolver"
	"github.com/dalemusser/anomalyhub/internal/app/system/tasks"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to every hook after ConnectDB, so the
// services built in Startup hang off the Services pointer.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Firebase is nil unless identity_backend=firebase.
	Firebase *firebaseid.Backend

	// Redis is nil unless redis_addr is set.
	Redis *redis.Client

	Services *Services
}

// Services are the long-lived objects Startup builds for BuildHandler and
// Shutdown.
type Services struct {
	Hub        *authstate.Hub
	Relay      *authstate.RedisRelay
	Resolver   *resolver.Resolver
	Identity   *identity.Service
	OAuthState *oauthstate.Store
	Tasks      *tasks.Runner
	Audit      *auditlog.Logger

	// Set by BuildHandler.
	LoginLimiter *ratelimit.CredentialLimiter
	ResetLimiter *ratelimit.CredentialLimiter
}
