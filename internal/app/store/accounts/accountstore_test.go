package accountstore_test

import (
	"context"
	"errors"
	"testing"

	accountstore "github.com/dalemusser/anomalyhub/internal/app/store/accounts"
	"github.com/dalemusser/anomalyhub/internal/app/store/resettokens"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/indexes"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newStore(t *testing.T) (*accountstore.Store, *resettokens.Store, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	resets := resettokens.New(db, 0)
	return accountstore.New(db, resets, "http://localhost:3000/", zap.NewNop()), resets, db
}

func TestStore_CreateAndVerify(t *testing.T) {
	store, _, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, err := store.Create(ctx, identity.NewAccount{Email: "Ada@Example.com", Password: "secret1", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.UID == "" || p.Email != "Ada@Example.com" || p.DisplayName != "Ada" {
		t.Errorf("unexpected principal %+v", p)
	}

	got, err := store.VerifyPassword(ctx, "ada@example.com", "secret1")
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if got.UID != p.UID {
		t.Errorf("verified uid %q, want %q", got.UID, p.UID)
	}

	if _, err := store.VerifyPassword(ctx, "ada@example.com", "wrong!"); !errors.Is(err, identity.ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := store.VerifyPassword(ctx, "nobody@example.com", "secret1"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStore_CreateRejectsDuplicateAndWeak(t *testing.T) {
	store, _, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, identity.NewAccount{Email: "a@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, identity.NewAccount{Email: "A@X.COM", Password: "secret1"}); !errors.Is(err, identity.ErrEmailInUse) {
		t.Errorf("expected ErrEmailInUse, got %v", err)
	}
	if _, err := store.Create(ctx, identity.NewAccount{Email: "b@x.com", Password: "123"}); !errors.Is(err, identity.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestStore_FederatedAccountNeverVerifies(t *testing.T) {
	store, _, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, identity.NewAccount{Email: "g@x.com", DisplayName: "G"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.VerifyPassword(ctx, "g@x.com", ""); !errors.Is(err, identity.ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
}

func TestStore_UpdatePasswordAndDelete(t *testing.T) {
	store, _, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, _ := store.Create(ctx, identity.NewAccount{Email: "a@x.com", Password: "secret1"})
	if err := store.UpdatePassword(ctx, p.UID, "12"); !errors.Is(err, identity.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if err := store.UpdatePassword(ctx, p.UID, "secret2"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if _, err := store.VerifyPassword(ctx, "a@x.com", "secret2"); err != nil {
		t.Errorf("new password should verify: %v", err)
	}

	if err := store.Delete(ctx, p.UID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, p.UID); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, p.UID); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStore_PasswordResetFlow(t *testing.T) {
	store, _, db := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p, _ := store.Create(ctx, identity.NewAccount{Email: "a@x.com", Password: "secret1"})
	if err := store.SendPasswordReset(ctx, "nobody@x.com"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := store.SendPasswordReset(ctx, "A@x.com"); err != nil {
		t.Fatalf("SendPasswordReset failed: %v", err)
	}

	var r resettokens.Reset
	if err := db.Collection(resettokens.Collection).FindOne(ctx, bson.M{"uid": p.UID}).Decode(&r); err != nil {
		t.Fatalf("reset token not stored: %v", err)
	}
	if link := store.ResetLink(r.Token); link != "http://localhost:3000/login/reset?token="+r.Token {
		t.Errorf("unexpected link %q", link)
	}

	if err := store.CompletePasswordReset(ctx, r.Token, "newpass"); err != nil {
		t.Fatalf("CompletePasswordReset failed: %v", err)
	}
	if _, err := store.VerifyPassword(ctx, "a@x.com", "newpass"); err != nil {
		t.Errorf("reset password should verify: %v", err)
	}
	if err := store.CompletePasswordReset(ctx, r.Token, "again!"); !errors.Is(err, identity.ErrResetTokenInvalid) {
		t.Errorf("expected ErrResetTokenInvalid on reuse, got %v", err)
	}
}

func TestStore_SecondaryContext(t *testing.T) {
	store, _, _ := newStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sec, err := store.Secondary(ctx)
	if err != nil {
		t.Fatalf("Secondary failed: %v", err)
	}
	p, err := sec.Create(ctx, identity.NewAccount{Email: "n@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("secondary Create failed: %v", err)
	}
	if _, err := store.Get(ctx, p.UID); err != nil {
		t.Errorf("account created through secondary should exist: %v", err)
	}
	if err := sec.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut: %v", err)
	}
	if err := sec.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, err := sec.Create(ctx, identity.NewAccount{Email: "m@x.com", Password: "secret1"}); err == nil {
		t.Error("Create on a closed context should fail")
	}
}
