package resettokens_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/store/resettokens"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore_IssueAndConsume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resettokens.New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if store.Expiry() != resettokens.DefaultExpiry {
		t.Errorf("expected default expiry, got %v", store.Expiry())
	}

	r, err := store.Issue(ctx, "u1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	got, err := store.Consume(ctx, r.Token)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.UID != "u1" || got.Email != "a@x.com" {
		t.Errorf("unexpected reset %+v", got)
	}

	if _, err := store.Consume(ctx, r.Token); !errors.Is(err, resettokens.ErrNotFound) {
		t.Errorf("second Consume: expected ErrNotFound, got %v", err)
	}
}

func TestStore_IssueRevokesOlderTokens(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resettokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := store.Issue(ctx, "u1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := store.Issue(ctx, "u1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := store.Consume(ctx, first.Token); !errors.Is(err, resettokens.ErrNotFound) {
		t.Errorf("old token should be revoked, got %v", err)
	}
	if _, err := store.Consume(ctx, second.Token); err != nil {
		t.Errorf("new token should work: %v", err)
	}
}

func TestStore_ConsumeExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resettokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r, err := store.Issue(ctx, "u1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_, err = db.Collection(resettokens.Collection).UpdateOne(ctx,
		bson.M{"_id": r.Token},
		bson.M{"$set": bson.M{"expires_at": time.Now().Add(-time.Minute)}})
	if err != nil {
		t.Fatalf("expire token: %v", err)
	}

	if _, err := store.Consume(ctx, r.Token); !errors.Is(err, resettokens.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resettokens.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old, err := store.Issue(ctx, "u1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := store.Issue(ctx, "u2", "b@x.com"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_, err = db.Collection(resettokens.Collection).UpdateOne(ctx,
		bson.M{"_id": old.Token},
		bson.M{"$set": bson.M{"expires_at": time.Now().Add(-time.Minute)}})
	if err != nil {
		t.Fatalf("expire token: %v", err)
	}

	n, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	left, err := db.Collection(resettokens.Collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if left != 1 {
		t.Errorf("expected 1 token left, got %d", left)
	}
}
