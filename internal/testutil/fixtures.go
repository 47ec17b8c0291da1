package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateProfile inserts a profile document. An empty uid gets a new one.
func (f *Fixtures) CreateProfile(ctx context.Context, uid, username, email, role string, createdAt *time.Time) models.UserProfile {
	f.t.Helper()
	if uid == "" {
		uid = uuid.NewString()
	}
	p := models.UserProfile{
		UID:       uid,
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: createdAt,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// CreateAlert inserts an alert for uid.
func (f *Fixtures) CreateAlert(ctx context.Context, uid, action, file string, at time.Time) models.Alert {
	f.t.Helper()
	a := models.Alert{
		ID:          uuid.NewString(),
		UID:         uid,
		Action:      action,
		Timestamp:   at.UTC().Truncate(time.Millisecond),
		Description: action + " detected",
		File:        file,
	}
	if _, err := f.db.Collection("alerts").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test alert: %v", err)
	}
	return a
}
