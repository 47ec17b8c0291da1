// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/anomalyhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	existing, err := listCollections(ctx, db)
	if err != nil {
		// Fall back to create-and-handle-race for every collection.
		logger.Warn("list collections failed", zap.Error(err))
		existing = map[string]bool{}
	}

	var problems []string
	for _, spec := range collections() {
		log := logger.With(zap.String("collection", spec.name))
		if !existing[spec.name] {
			if err := createCollection(ctx, db, spec.name, log); err != nil {
				problems = append(problems, spec.name+": "+err.Error())
				continue
			}
		}
		if spec.schema == nil {
			continue
		}
		if err := setValidator(ctx, db, spec.name, spec.schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				log.Info("validator skipped (unsupported)")
				continue
			}
			problems = append(problems, spec.name+": "+err.Error())
			continue
		}
		log.Debug("validator ensured")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type collectionSpec struct {
	name   string
	schema bson.M
}

func collections() []collectionSpec {
	return []collectionSpec{
		{"users", profilesSchema()},
		{"accounts", accountsSchema()},
		{"alerts", alertsSchema()},
		{"password_resets", resetsSchema()},
		{"audit_events", auditSchema()},
		// Short-lived; the TTL index is all it needs.
		{"oauth_states", nil},
	}
}

func listCollections(ctx context.Context, db *mongo.Database) (map[string]bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

// createCollection treats "already exists" as success, which covers a
// concurrent instance racing us at startup.
func createCollection(ctx context.Context, db *mongo.Database, name string, log *zap.Logger) error {
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return nil
		}
		log.Warn("create collection failed", zap.Error(err))
		return err
	}
	log.Info("created collection")
	return nil
}

// setValidator attaches schema with moderate validation, so documents
// written before the validator existed can still be updated.
func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func profilesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"username"},
			"properties": bson.M{
				"username":   bson.M{"bsonType": "string"},
				"email":      bson.M{"bsonType": "string"},
				"photo_url":  bson.M{"bsonType": "string"},
				"role":       bson.M{"enum": bson.A{models.RoleUser, models.RoleAdmin}},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func accountsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "email_ci", "created_at"},
			"properties": bson.M{
				"email":         bson.M{"bsonType": "string", "minLength": 3, "pattern": ".+@.+"},
				"email_ci":      bson.M{"bsonType": "string", "minLength": 3},
				"password_hash": bson.M{"bsonType": "string"},
				"display_name":  bson.M{"bsonType": "string"},
				"created_at":    bson.M{"bsonType": "date"},
				"updated_at":    bson.M{"bsonType": "date"},
			},
		},
	}
}

func alertsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"uid", "timestamp"},
			"properties": bson.M{
				"uid":         bson.M{"bsonType": "string", "minLength": 1},
				"timestamp":   bson.M{"bsonType": "date"},
				"action":      bson.M{"bsonType": "string"},
				"type":        bson.M{"bsonType": "string"},
				"description": bson.M{"bsonType": "string"},
				"clip_url":    bson.M{"bsonType": "string"},
				"file":        bson.M{"bsonType": "string"},
			},
		},
	}
}

func resetsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"uid", "email", "expires_at"},
			"properties": bson.M{
				"uid":        bson.M{"bsonType": "string", "minLength": 1},
				"email":      bson.M{"bsonType": "string"},
				"expires_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func auditSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"timestamp", "category", "event_type"},
			"properties": bson.M{
				"timestamp":  bson.M{"bsonType": "date"},
				"category":   bson.M{"enum": bson.A{"auth", "admin"}},
				"event_type": bson.M{"bsonType": "string", "minLength": 1},
				"success":    bson.M{"bsonType": "bool"},
			},
		},
	}
}
