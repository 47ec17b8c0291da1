package firebaseid

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const alertsCollection = "alerts"

// Alerts implements identity.Alerts on users/{uid}/alerts.
type Alerts struct {
	fs  *firestore.Client
	log *zap.Logger
}

func (a *Alerts) coll(uid string) *firestore.CollectionRef {
	return a.fs.Collection(usersCollection).Doc(uid).Collection(alertsCollection)
}

func (a *Alerts) query(uid string) firestore.Query {
	return a.coll(uid).OrderBy("timestamp", firestore.Desc)
}

func alertFromSnapshot(uid string, snap *firestore.DocumentSnapshot) (models.Alert, error) {
	var al models.Alert
	if err := snap.DataTo(&al); err != nil {
		return models.Alert{}, fmt.Errorf("decode alert %s: %w", snap.Ref.ID, err)
	}
	al.ID = snap.Ref.ID
	al.UID = uid
	return al, nil
}

// docIterator is the part of *firestore.DocumentIterator collectAlerts reads.
type docIterator interface {
	Next() (*firestore.DocumentSnapshot, error)
	Stop()
}

// collectAlerts drains iter. A document that fails to decode is logged and
// skipped; only an iterator failure fails the list.
func (a *Alerts) collectAlerts(uid string, iter docIterator, decode func(string, *firestore.DocumentSnapshot) (models.Alert, error)) ([]models.Alert, error) {
	defer iter.Stop()
	out := []models.Alert{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		al, err := decode(uid, snap)
		if err != nil {
			a.log.Warn("skipping unreadable alert", zap.String("uid", uid), zap.Error(err))
			continue
		}
		out = append(out, al)
	}
}

func (a *Alerts) List(ctx context.Context, uid string) ([]models.Alert, error) {
	list, err := a.collectAlerts(uid, a.query(uid).Documents(ctx), alertFromSnapshot)
	if err != nil {
		return nil, fmt.Errorf("list alerts for %s: %w", uid, err)
	}
	return list, nil
}

func (a *Alerts) Delete(ctx context.Context, uid, id string) error {
	if _, err := a.coll(uid).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return identity.ErrAlertNotFound
		}
		return fmt.Errorf("delete alert %s/%s: %w", uid, id, err)
	}
	return nil
}

// Subscribe follows the alert query with a snapshot listener. The first
// snapshot is the current list.
func (a *Alerts) Subscribe(ctx context.Context, uid string) (<-chan []models.Alert, error) {
	it := a.query(uid).Snapshots(ctx)
	out := make(chan []models.Alert, 1)

	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					a.log.Warn("alert listener stopped", zap.String("uid", uid), zap.Error(err))
				}
				return
			}
			list, err := a.collectAlerts(uid, snap.Documents, alertFromSnapshot)
			if err != nil {
				a.log.Warn("read alert snapshot", zap.String("uid", uid), zap.Error(err))
				continue
			}
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
