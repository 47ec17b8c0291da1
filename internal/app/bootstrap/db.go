// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/anomalyhub/internal/app/system/authstate"
	"github.com/dalemusser/anomalyhub/internal/app/system/firebaseid"
	"github.com/dalemusser/anomalyhub/internal/app/system/indexes"
	"github.com/dalemusser/anomalyhub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB connects MongoDB (always), Firebase (in firebase mode) and
// Redis (when redis_addr is set). A failure after Mongo is up disconnects
// what was already opened.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Services:      &Services{},
	}

	if appCfg.IdentityBackend == BackendFirebase {
		fb, err := firebaseid.New(ctx, firebaseid.Config{
			ProjectID:       appCfg.FirebaseProjectID,
			CredentialsFile: appCfg.FirebaseCredentialsFile,
			CredentialsJSON: appCfg.FirebaseCredentialsJSON,
			APIKey:          appCfg.FirebaseAPIKey,
		}, logger)
		if err != nil {
			_ = client.Disconnect(context.Background())
			logger.Error("firebase init failed", zap.Error(err))
			return DBDeps{}, err
		}
		deps.Firebase = fb
	}

	if appCfg.RedisAddr != "" {
		rdb, err := authstate.NewRedisClient(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			// The relay is an optimisation; a single instance runs fine without it.
			logger.Warn("redis unavailable; auth-state relay disabled",
				zap.String("addr", appCfg.RedisAddr), zap.Error(err))
		} else {
			logger.Info("connected to Redis", zap.String("addr", appCfg.RedisAddr))
			deps.Redis = rdb
		}
	}

	return deps, nil
}

// EnsureSchema creates the collections with their JSON-Schema validators and
// then the indexes both backends rely on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
