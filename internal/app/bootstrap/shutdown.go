// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown tears down background workers and connections in dependency
// order: workers, resolver, relay, hub, redis, firebase, mongo. Every step
// runs even if an earlier one fails; the Mongo error, if any, is returned.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc := deps.Services; svc != nil {
		if svc.Tasks != nil {
			svc.Tasks.Stop()
		}
		if svc.LoginLimiter != nil {
			svc.LoginLimiter.Close()
		}
		if svc.ResetLimiter != nil {
			svc.ResetLimiter.Close()
		}
		if svc.Resolver != nil {
			svc.Resolver.Close()
		}
		if svc.Relay != nil {
			if err := svc.Relay.Close(); err != nil {
				logger.Warn("auth-state relay close failed", zap.Error(err))
			}
		}
		if svc.Hub != nil {
			svc.Hub.Close()
		}
	}

	if deps.Redis != nil {
		logger.Info("closing Redis client")
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}

	if deps.Firebase != nil {
		logger.Info("closing Firebase clients")
		if err := deps.Firebase.Close(); err != nil {
			logger.Warn("Firebase close failed", zap.Error(err))
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
