// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes meaning "transactions are unavailable here":
// IllegalOperation, CommandNotSupported and OperationNotSupportedInTransaction.
var unsupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions (typically a standalone mongod).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && unsupportedCodes[ce.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	has := func(a, b string) bool { return strings.Contains(msg, a) && strings.Contains(msg, b) }
	return has("transaction", "replica set") ||
		has("transaction", "session") ||
		has("session", "not supported") ||
		has("illegal operation", "transaction")
}

// Run executes fn inside a transaction when the deployment supports one.
// On a standalone server fn runs once without a transaction, so callers
// must keep fn safe to apply step by step.
func Run(ctx context.Context, db *mongo.Database, logger *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if logger != nil {
			logger.Debug("transactions unavailable; running without one", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}
