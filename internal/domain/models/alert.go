// internal/domain/models/alert.go
package models

import "time"

// Alert is one entry in a user's alert history. Alerts are written by the
// detection pipeline; this app only reads and deletes them.
type Alert struct {
	ID          string    `bson:"_id" firestore:"-" json:"id"`
	UID         string    `bson:"uid" firestore:"-" json:"-"`
	Action      string    `bson:"action,omitempty" firestore:"action,omitempty" json:"action,omitempty"`
	Type        string    `bson:"type,omitempty" firestore:"type,omitempty" json:"type,omitempty"`
	Camera      string    `bson:"camera,omitempty" firestore:"camera,omitempty" json:"camera,omitempty"`
	Timestamp   time.Time `bson:"timestamp" firestore:"timestamp" json:"timestamp"`
	Description string    `bson:"description,omitempty" firestore:"description,omitempty" json:"description,omitempty"`
	ClipURL     string    `bson:"clip_url,omitempty" firestore:"clipUrl,omitempty" json:"clipUrl,omitempty"`
	File        string    `bson:"file,omitempty" firestore:"file,omitempty" json:"file,omitempty"`
}

// Category is the label shown for the alert: Action, or Type when Action is blank.
func (a Alert) Category() string {
	if a.Action != "" {
		return a.Action
	}
	return a.Type
}

// Matches reports whether ref names this alert, either by id or by file.
func (a Alert) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	return a.ID == ref || (a.File != "" && a.File == ref)
}
