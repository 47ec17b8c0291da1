// internal/app/store/alerts/alertstore.go
package alertstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection is the alert collection name.
const Collection = "alerts"

// DefaultPollInterval is used when change streams are unavailable.
const DefaultPollInterval = 3 * time.Second

// Store keeps alerts keyed by owner uid. It implements identity.Alerts.
type Store struct {
	c    *mongo.Collection
	log  *zap.Logger
	poll time.Duration
}

// New creates a Store. A non-positive poll interval uses DefaultPollInterval.
func New(db *mongo.Database, logger *zap.Logger, poll time.Duration) *Store {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Store{c: db.Collection(Collection), log: logger.Named("alerts"), poll: poll}
}

// Insert stores a for uid, assigning an id when it has none.
func (s *Store) Insert(ctx context.Context, uid string, a models.Alert) (models.Alert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.UID = uid
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Alert{}, err
	}
	return a, nil
}

// List returns uid's alerts, newest first.
func (s *Store) List(ctx context.Context, uid string) ([]models.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"uid": uid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Alert{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one of uid's alerts.
func (s *Store) Delete(ctx context.Context, uid, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "uid": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return identity.ErrAlertNotFound
	}
	return nil
}

// Subscribe emits uid's alert list now and after every change until ctx
// ends. Changes come from a change stream; on a standalone server, where
// change streams are not supported, the list is polled instead.
func (s *Store) Subscribe(ctx context.Context, uid string) (<-chan []models.Alert, error) {
	first, err := s.List(ctx, uid)
	if err != nil {
		return nil, err
	}

	out := make(chan []models.Alert, 1)
	out <- first

	stream, werr := s.watch(ctx, uid)
	switch {
	case werr == nil:
	case IsChangeStreamUnsupported(werr):
		s.log.Debug("change streams unsupported; polling", zap.String("uid", uid))
	default:
		s.log.Warn("open change stream failed; polling", zap.String("uid", uid), zap.Error(werr))
	}

	go func() {
		defer close(out)
		if stream != nil {
			s.followStream(ctx, uid, stream, out)
			return
		}
		s.followPoll(ctx, uid, signature(first), out)
	}()
	return out, nil
}

func (s *Store) watch(ctx context.Context, uid string) (*mongo.ChangeStream, error) {
	// Deletes carry no fullDocument, so every delete wakes every watcher;
	// the re-list below filters by owner.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.uid": uid},
			bson.M{"operationType": "delete"},
		}}}},
	}
	return s.c.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
}

func (s *Store) followStream(ctx context.Context, uid string, stream *mongo.ChangeStream, out chan<- []models.Alert) {
	defer stream.Close(context.WithoutCancel(ctx))
	last := ""
	for stream.Next(ctx) {
		list, err := s.List(ctx, uid)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("re-list after change failed", zap.String("uid", uid), zap.Error(err))
			}
			continue
		}
		sig := signature(list)
		if sig == last {
			continue
		}
		last = sig
		if !send(ctx, out, list) {
			return
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		s.log.Warn("alert change stream ended", zap.String("uid", uid), zap.Error(err))
	}
}

func (s *Store) followPoll(ctx context.Context, uid, last string, out chan<- []models.Alert) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		list, err := s.List(ctx, uid)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("poll alerts failed", zap.String("uid", uid), zap.Error(err))
			}
			continue
		}
		sig := signature(list)
		if sig == last {
			continue
		}
		last = sig
		if !send(ctx, out, list) {
			return
		}
	}
}

func send(ctx context.Context, out chan<- []models.Alert, list []models.Alert) bool {
	select {
	case out <- list:
		return true
	case <-ctx.Done():
		return false
	}
}

// signature identifies a list's content cheaply enough to skip no-op emits.
func signature(list []models.Alert) string {
	var b strings.Builder
	for _, a := range list {
		b.WriteString(a.ID)
		b.WriteByte('@')
		b.WriteString(a.Timestamp.UTC().Format(time.RFC3339Nano))
		b.WriteByte('|')
		b.WriteString(a.Description)
		b.WriteByte(';')
	}
	return b.String()
}

// IsChangeStreamUnsupported reports whether err means the server cannot
// open change streams.
func IsChangeStreamUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		// 40573: $changeStream stage is only supported on replica sets
		return ce.Code == 40573 || ce.HasErrorLabel("NonResumableChangeStreamError")
	}
	return strings.Contains(err.Error(), "only supported on replica sets")
}
