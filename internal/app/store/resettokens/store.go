// internal/app/store/resettokens/store.go
package resettokens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection is the reset token collection name.
const Collection = "password_resets"

// DefaultExpiry is how long a reset link stays valid.
const DefaultExpiry = time.Hour

// ErrNotFound is returned for an unknown, used or expired token.
var ErrNotFound = errors.New("reset token not found or expired")

// Reset is one outstanding password reset.
type Reset struct {
	Token     string    `bson:"_id"`
	UID       string    `bson:"uid"`
	Email     string    `bson:"email"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index field
	CreatedAt time.Time `bson:"created_at"`
}

// Store manages single-use password reset tokens.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store. A non-positive expiry uses DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection(Collection), expiry: expiry}
}

// Expiry returns how long issued tokens are valid.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// Issue creates a token for uid. Earlier tokens for uid are revoked so only
// the newest link works.
func (s *Store) Issue(ctx context.Context, uid, email string) (Reset, error) {
	if _, err := s.c.DeleteMany(ctx, bson.M{"uid": uid}); err != nil {
		return Reset{}, err
	}
	now := time.Now().UTC()
	r := Reset{
		Token:     uuid.NewString(),
		UID:       uid,
		Email:     email,
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return Reset{}, err
	}
	return r, nil
}

// Consume validates token and deletes it in the same step.
func (s *Store) Consume(ctx context.Context, token string) (Reset, error) {
	var r Reset
	err := s.c.FindOneAndDelete(ctx, bson.M{
		"_id":        token,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Reset{}, ErrNotFound
	}
	if err != nil {
		return Reset{}, err
	}
	return r, nil
}

// CleanupExpired removes expired tokens, for when TTL cleanup lags.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
