// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/anomalyhub/internal/app/resources"
	accounts "github.com/dalemusser/anomalyhub/internal/app/store/accounts"
	alerts "github.com/dalemusser/anomalyhub/internal/app/store/alerts"
	"github.com/dalemusser/anomalyhub/internal/app/store/audit"
	"github.com/dalemusser/anomalyhub/internal/app/store/oauthstate"
	profiles "github.com/dalemusser/anomalyhub/internal/app/store/profiles"
	"github.com/dalemusser/anomalyhub/internal/app/store/resettokens"
	"github.com/dalemusser/anomalyhub/internal/app/system/auditlog"
	"github.com/dalemusser/anomalyhub/internal/app/system/authstate"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/resolver"
	"github.com/dalemusser/anomalyhub/internal/app/system/tasks"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// It loads the shared templates, applies the timeout classes, and builds the
// auth-state hub, the optional redis relay, the role resolver and the
// identity service over the configured backend. Finally it makes sure the
// configured admin exists.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
		Stream: appCfg.TimeoutStream,
	})
	cur := timeouts.Current()
	logger.Info("operation timeouts",
		zap.Duration("ping", cur.Ping),
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium),
		zap.Duration("long", cur.Long),
		zap.Duration("stream", cur.Stream))

	if deps.Services == nil {
		return errors.New("startup: DBDeps.Services is nil; ConnectDB must run first")
	}
	svc := deps.Services

	svc.Hub = authstate.NewHub()
	if deps.Redis != nil {
		relay := authstate.NewRedisRelay(deps.Redis, svc.Hub, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Warn("auth-state relay failed to start; continuing without it", zap.Error(err))
		} else {
			svc.Relay = relay
		}
	}

	idsvc, roles, err := buildIdentity(appCfg, deps, svc.Hub, logger)
	if err != nil {
		return err
	}
	svc.Identity = idsvc
	svc.Resolver = resolver.New(roles.profiles, svc.Hub, logger, resolver.Options{
		FetchTimeout: timeouts.Short(),
		Accounts:     roles.accounts,
	})
	svc.OAuthState = oauthstate.New(deps.MongoDatabase)

	auditCfg := auditlog.Config{Auth: appCfg.AuditAuth, Admin: appCfg.AuditAdmin}
	svc.Audit = auditlog.New(audit.New(deps.MongoDatabase), logger, auditCfg)
	logger.Info("audit logging", zap.Stringer("destinations", auditCfg))

	jobs := []tasks.Job{tasks.OAuthStateCleanupJob(svc.OAuthState, logger)}
	if appCfg.IdentityBackend == BackendMongo {
		jobs = append(jobs, tasks.ResetTokenCleanupJob(resettokens.New(deps.MongoDatabase, 0), logger))
	}
	svc.Tasks = tasks.NewRunner(logger, timeouts.Long(), jobs...)
	svc.Tasks.Start()

	if err := ensureAdmin(ctx, svc.Identity, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
		return err
	}

	logger.Info("identity backend ready", zap.String("backend", appCfg.IdentityBackend))
	return nil
}

// roleSources are the stores the resolver reads: profiles for the role and
// accounts to confirm the uid still exists.
type roleSources struct {
	profiles resolver.ProfileGetter
	accounts resolver.AccountGetter
}

// buildIdentity wires the identity service to the configured backend and
// returns the sources the resolver reads roles from.
func buildIdentity(appCfg AppConfig, deps DBDeps, hub *authstate.Hub, logger *zap.Logger) (*identity.Service, roleSources, error) {
	opts := identity.Options{RecentLoginWindow: appCfg.RecentLoginWindow}
	idLog := logger.Named("identity")

	switch appCfg.IdentityBackend {
	case BackendFirebase:
		if deps.Firebase == nil {
			return nil, roleSources{}, errors.New("identity_backend=firebase but firebase was not initialized")
		}
		acct, prof := deps.Firebase.Accounts(), deps.Firebase.Profiles()
		return identity.NewService(acct, prof, deps.Firebase.Alerts(), hub, idLog, opts), roleSources{prof, acct}, nil

	case BackendMongo, "":
		db := deps.MongoDatabase
		resets := resettokens.New(db, 0)
		acct := accounts.New(db, resets, appCfg.BaseURL, logger)
		prof := profiles.New(db)
		al := alerts.New(db, logger, 0)
		return identity.NewService(acct, prof, al, hub, idLog, opts), roleSources{prof, acct}, nil
	}
	return nil, roleSources{}, fmt.Errorf("unknown identity backend %q", appCfg.IdentityBackend)
}

// ensureAdmin promotes (or creates) the configured admin. An empty email is
// a no-op.
func ensureAdmin(ctx context.Context, svc *identity.Service, email, password string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	actx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "ensure admin")
	defer cancel()

	if err := svc.EnsureAdmin(actx, email, password); err != nil {
		logger.Error("ensure admin failed", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("ensure admin: %w", err)
	}
	return nil
}
