// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredCleaner is a store that can purge its own expired documents.
// *oauthstate.Store and *resettokens.Store satisfy it.
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// OAuthStateCleanupJob creates a job that removes expired OAuth state tokens.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(stateStore ExpiredCleaner, logger *zap.Logger) Job {
	return cleanupJob("oauth-state-cleanup", time.Hour, stateStore, logger)
}

// ResetTokenCleanupJob removes expired password reset tokens. Consume
// already refuses them; this only keeps the collection small.
func ResetTokenCleanupJob(resets ExpiredCleaner, logger *zap.Logger) Job {
	return cleanupJob("reset-token-cleanup", 30*time.Minute, resets, logger)
}

func cleanupJob(name string, every time.Duration, store ExpiredCleaner, logger *zap.Logger) Job {
	return Job{
		Name:     name,
		Interval: every,
		Run: func(ctx context.Context) error {
			count, err := store.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired documents",
					zap.String("job", name),
					zap.Int64("count", count))
			}
			return nil
		},
	}
}
