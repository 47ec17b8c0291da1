package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/anomalyhub/internal/app/system/indexes"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func indexNames(t *testing.T, ctx context.Context, db *mongo.Database, collection string) map[string]bool {
	t.Helper()
	cur, err := db.Collection(collection).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	expected := map[string][]string{
		"users":           {"idx_users_email", "idx_users_created_desc"},
		"accounts":        {"uniq_accounts_email_ci"},
		"password_resets": {"idx_password_resets_ttl", "idx_password_resets_uid"},
		"alerts":          {"idx_alerts_uid_timestamp", "idx_alerts_uid_file"},
		"oauth_states":    {"idx_oauth_expires_ttl"},
		"audit_events":    {"idx_audit_timestamp_desc", "idx_audit_uid_timestamp", "idx_audit_actor_timestamp", "idx_audit_category_type_timestamp"},
	}
	for coll, names := range expected {
		got := indexNames(t, ctx, db, coll)
		for _, name := range names {
			if !got[name] {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_RenamesMismatchedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Same keys as uniq_accounts_email_ci, different name and not unique.
	_, err := db.Collection("accounts").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email_ci", Value: 1}},
	})
	if err != nil {
		t.Fatalf("seed index failed: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	got := indexNames(t, ctx, db, "accounts")
	if !got["uniq_accounts_email_ci"] || got["email_ci_1"] {
		t.Errorf("expected the old index to be replaced, got %v", got)
	}
}

func TestEnsureAll_UniqueIndexEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	if _, err := db.Collection("accounts").InsertOne(ctx, bson.M{"_id": "a", "email_ci": "x@y.com"}); err != nil {
		t.Fatalf("Insert account failed: %v", err)
	}
	if _, err := db.Collection("accounts").InsertOne(ctx, bson.M{"_id": "b", "email_ci": "x@y.com"}); err == nil {
		t.Error("expected duplicate key error for unique index on accounts.email_ci")
	}
}
