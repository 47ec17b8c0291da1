package profilestore_test

import (
	"errors"
	"testing"
	"time"

	profilestore "github.com/dalemusser/anomalyhub/internal/app/store/profiles"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/anomalyhub/internal/testutil"
)

func TestStore_GetMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, identity.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestStore_UpsertReplaceAndMerge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Upsert(ctx, models.UserProfile{
		UID: "u1", Username: "alice", Email: "a@x.com", Role: "admin", CreatedAt: &created,
	}, false); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// A merge with only a new photo keeps the role.
	if err := store.Upsert(ctx, models.UserProfile{UID: "u1", PhotoURL: "https://img/a"}, true); err != nil {
		t.Fatalf("merge Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Role != "admin" || got.Username != "alice" || got.PhotoURL != "https://img/a" {
		t.Errorf("unexpected profile after merge: %+v", got)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(created) {
		t.Errorf("createdAt changed: %v", got.CreatedAt)
	}

	// A merge on a missing document creates it.
	if err := store.Upsert(ctx, models.UserProfile{UID: "u2", Username: "bob"}, true); err != nil {
		t.Fatalf("merge insert failed: %v", err)
	}
	if got, err := store.Get(ctx, "u2"); err != nil || got.Username != "bob" {
		t.Errorf("merge insert: %+v %v", got, err)
	}
}

func TestStore_ListUpdateDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := profilestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateProfile(ctx, "u1", "alice", "a@x.com", "user", nil)
	fx.CreateProfile(ctx, "u2", "bob", "b@x.com", "admin", nil)

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(list))
	}

	if err := store.Update(ctx, "u1", identity.ProfilePatch{Username: "Alice", Email: "alice@x.com", Role: "admin"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := store.Get(ctx, "u1")
	if got.Username != "Alice" || got.Email != "alice@x.com" || got.Role != "admin" {
		t.Errorf("unexpected profile after update: %+v", got)
	}
	if err := store.Update(ctx, "ghost", identity.ProfilePatch{Username: "x"}); !errors.Is(err, identity.ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}

	if err := store.Delete(ctx, "u2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "u2"); !errors.Is(err, identity.ErrProfileNotFound) {
		t.Errorf("second delete: expected ErrProfileNotFound, got %v", err)
	}
}
