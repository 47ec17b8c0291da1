// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess           = "login_success"
	EventLoginFailed            = "login_failed"
	EventLoginFailedRateLimit   = "login_failed_rate_limit"
	EventGoogleLogin            = "google_login"
	EventLogout                 = "logout"
	EventRegistered             = "registered"
	EventPasswordChanged        = "password_changed"
	EventPasswordChangeFailed   = "password_change_failed"
	EventPasswordResetRequested = "password_reset_requested"
	EventAccountDeleted         = "account_deleted"
)

// Admin event types
const (
	EventUserCreated = "user_created"
	EventUserUpdated = "user_updated"
	EventUserRemoved = "user_removed"
)

// AuthEvents lists the auth event types in display order.
var AuthEvents = []string{
	EventLoginSuccess,
	EventLoginFailed,
	EventLoginFailedRateLimit,
	EventGoogleLogin,
	EventLogout,
	EventRegistered,
	EventPasswordChanged,
	EventPasswordChangeFailed,
	EventPasswordResetRequested,
	EventAccountDeleted,
}

// AdminEvents lists the admin event types in display order.
var AdminEvents = []string{
	EventUserCreated,
	EventUserUpdated,
	EventUserRemoved,
}

// Event represents an audit event.
type Event struct {
	ID        string    `bson:"_id"`
	Timestamp time.Time `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// UID is the affected user; ActorUID is the admin who acted, if any.
	UID      string `bson:"uid,omitempty"`
	ActorUID string `bson:"actor_uid,omitempty"`
	Email    string `bson:"email,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UID       string // matches either the affected user or the actor
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records in the audit_events collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event, assigning an id and timestamp when unset.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func (f QueryFilter) toBSON() bson.M {
	query := bson.M{}
	if f.UID != "" {
		query["$or"] = bson.A{bson.M{"uid": f.UID}, bson.M{"actor_uid": f.UID}}
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := make([]Event, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.toBSON())
}

// GetFailedLogins retrieves recent failed login attempts.
func (s *Store) GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	query := bson.M{
		"category": CategoryAuth,
		"success":  false,
		"event_type": bson.M{
			"$in": []string{EventLoginFailed, EventLoginFailedRateLimit},
		},
		"timestamp": bson.M{"$gte": since},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := make([]Event, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
