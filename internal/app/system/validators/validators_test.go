package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/validators"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	for _, want := range []string{"users", "accounts", "alerts", "password_resets", "oauth_states", "audit_events"} {
		if !have[want] {
			t.Errorf("expected collection %q to exist", want)
		}
	}
}

func TestProfilesValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	users := db.Collection("users")

	if _, err := users.InsertOne(ctx, bson.M{"_id": "u1", "username": "ada", "email": "ada@x.com", "role": "admin"}); err != nil {
		t.Errorf("valid profile rejected: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"_id": "u2", "username": "bob"}); err != nil {
		t.Errorf("profile without role should be accepted: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"_id": "u3", "email": "x@x.com"}); err == nil {
		t.Error("expected error for profile without username")
	}
	if _, err := users.InsertOne(ctx, bson.M{"_id": "u4", "username": "eve", "role": "superadmin"}); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestAccountsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	accounts := db.Collection("accounts")
	now := time.Now().UTC()

	if _, err := accounts.InsertOne(ctx, bson.M{
		"_id": "a1", "email": "ada@x.com", "email_ci": "ada@x.com", "created_at": now,
	}); err != nil {
		t.Errorf("valid account rejected: %v", err)
	}
	if _, err := accounts.InsertOne(ctx, bson.M{
		"_id": "a2", "email": "not-an-email", "email_ci": "not-an-email", "created_at": now,
	}); err == nil {
		t.Error("expected error for malformed email")
	}
	if _, err := accounts.InsertOne(ctx, bson.M{"_id": "a3", "email": "b@x.com"}); err == nil {
		t.Error("expected error for missing required fields")
	}
}

func TestAlertsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	alerts := db.Collection("alerts")

	if _, err := alerts.InsertOne(ctx, bson.M{"_id": "x1", "uid": "u1", "timestamp": time.Now(), "type": "Fighting"}); err != nil {
		t.Errorf("valid alert rejected: %v", err)
	}
	if _, err := alerts.InsertOne(ctx, bson.M{"_id": "x2", "uid": "u1", "timestamp": "yesterday"}); err == nil {
		t.Error("expected error for string timestamp")
	}
	if _, err := alerts.InsertOne(ctx, bson.M{"_id": "x3", "timestamp": time.Now()}); err == nil {
		t.Error("expected error for alert without owner")
	}
}

func TestResetsValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	resets := db.Collection("password_resets")

	if _, err := resets.InsertOne(ctx, bson.M{"_id": "t1", "uid": "u1", "email": "a@x.com", "expires_at": time.Now().Add(time.Hour)}); err != nil {
		t.Errorf("valid reset rejected: %v", err)
	}
	if _, err := resets.InsertOne(ctx, bson.M{"_id": "t2", "uid": "u1", "email": "a@x.com"}); err == nil {
		t.Error("expected error for reset without expiry")
	}
}

func TestOAuthStates_NoValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	if _, err := db.Collection("oauth_states").InsertOne(ctx, bson.M{"_id": "s1", "anything": 1}); err != nil {
		t.Errorf("oauth_states should accept any document: %v", err)
	}
}

func TestAuditValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	events := db.Collection("audit_events")
	if _, err := events.InsertOne(ctx, bson.M{"_id": "e1", "timestamp": time.Now(), "category": "auth", "event_type": "logout", "success": true}); err != nil {
		t.Errorf("valid audit event rejected: %v", err)
	}
	if _, err := events.InsertOne(ctx, bson.M{"_id": "e2", "timestamp": time.Now(), "category": "security", "event_type": "logout"}); err == nil {
		t.Error("expected unknown category to be rejected")
	}
}
