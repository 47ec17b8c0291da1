// internal/app/store/profiles/profilestore.go
package profilestore

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the profile collection name.
const Collection = "users"

// Store keeps one profile document per uid. It implements identity.Profiles.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Get loads the profile for uid.
func (s *Store) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	var p models.UserProfile
	err := s.c.FindOne(ctx, bson.M{"_id": uid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.UserProfile{}, identity.ErrProfileNotFound
	}
	if err != nil {
		return models.UserProfile{}, err
	}
	return p, nil
}

// Upsert writes p. With merge only the non-empty fields of p are set, so a
// partial profile never clears what is stored.
func (s *Store) Upsert(ctx context.Context, p models.UserProfile, merge bool) error {
	if !merge {
		_, err := s.c.ReplaceOne(ctx, bson.M{"_id": p.UID}, p, options.Replace().SetUpsert(true))
		return err
	}

	set := bson.M{}
	if p.Username != "" {
		set["username"] = p.Username
	}
	if p.Email != "" {
		set["email"] = strings.TrimSpace(p.Email)
	}
	if p.PhotoURL != "" {
		set["photo_url"] = p.PhotoURL
	}
	if p.Role != "" {
		set["role"] = p.Role
	}
	if p.CreatedAt != nil {
		set["created_at"] = *p.CreatedAt
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if _, ok := set["username"]; !ok {
		// an update needs at least one operator
		update["$setOnInsert"] = bson.M{"username": ""}
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": p.UID}, update, options.Update().SetUpsert(true))
	return err
}

// List returns every profile in natural order.
func (s *Store) List(ctx context.Context) ([]models.UserProfile, error) {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.UserProfile{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update sets username, email and role. Other fields are untouched.
func (s *Store) Update(ctx context.Context, uid string, patch identity.ProfilePatch) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{
		"username": patch.Username,
		"email":    strings.TrimSpace(patch.Email),
		"role":     patch.Role,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return identity.ErrProfileNotFound
	}
	return nil
}

// Delete removes the profile document.
func (s *Store) Delete(ctx context.Context, uid string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return identity.ErrProfileNotFound
	}
	return nil
}
