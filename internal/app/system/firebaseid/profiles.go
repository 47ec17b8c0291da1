package firebaseid

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"google.golang.org/api/iterator"
)

const usersCollection = "users"

// Profiles implements identity.Profiles on the Firestore users collection.
type Profiles struct {
	fs *firestore.Client
}

func (p *Profiles) doc(uid string) *firestore.DocumentRef {
	return p.fs.Collection(usersCollection).Doc(uid)
}

func (p *Profiles) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	snap, err := p.doc(uid).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return models.UserProfile{}, identity.ErrProfileNotFound
		}
		return models.UserProfile{}, fmt.Errorf("get profile %s: %w", uid, err)
	}
	return profileFromSnapshot(snap)
}

func profileFromSnapshot(snap *firestore.DocumentSnapshot) (models.UserProfile, error) {
	var prof models.UserProfile
	if err := snap.DataTo(&prof); err != nil {
		return models.UserProfile{}, fmt.Errorf("decode profile %s: %w", snap.Ref.ID, err)
	}
	prof.UID = snap.Ref.ID
	return prof, nil
}

// mergeFields is the MergeAll payload for a partial profile write.
func mergeFields(prof models.UserProfile) map[string]interface{} {
	m := map[string]interface{}{"uid": prof.UID}
	if prof.Username != "" {
		m["username"] = prof.Username
	}
	if prof.Email != "" {
		m["email"] = prof.Email
	}
	if prof.PhotoURL != "" {
		m["photoURL"] = prof.PhotoURL
	}
	if prof.Role != "" {
		m["role"] = prof.Role
	}
	if prof.CreatedAt != nil {
		m["createdAt"] = *prof.CreatedAt
	}
	return m
}

func (p *Profiles) Upsert(ctx context.Context, prof models.UserProfile, merge bool) error {
	var err error
	if merge {
		_, err = p.doc(prof.UID).Set(ctx, mergeFields(prof), firestore.MergeAll)
	} else {
		_, err = p.doc(prof.UID).Set(ctx, prof)
	}
	if err != nil {
		return fmt.Errorf("write profile %s: %w", prof.UID, err)
	}
	return nil
}

func (p *Profiles) List(ctx context.Context) ([]models.UserProfile, error) {
	iter := p.fs.Collection(usersCollection).Documents(ctx)
	defer iter.Stop()

	out := []models.UserProfile{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		prof, err := profileFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, prof)
	}
	return out, nil
}

func (p *Profiles) Update(ctx context.Context, uid string, patch identity.ProfilePatch) error {
	_, err := p.doc(uid).Update(ctx, []firestore.Update{
		{Path: "username", Value: patch.Username},
		{Path: "email", Value: patch.Email},
		{Path: "role", Value: patch.Role},
	})
	if err != nil {
		if isNotFound(err) {
			return identity.ErrProfileNotFound
		}
		return fmt.Errorf("update profile %s: %w", uid, err)
	}
	return nil
}

func (p *Profiles) Delete(ctx context.Context, uid string) error {
	if _, err := p.doc(uid).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return identity.ErrProfileNotFound
		}
		return fmt.Errorf("delete profile %s: %w", uid, err)
	}
	return nil
}
