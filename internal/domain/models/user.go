// internal/domain/models/user.go
package models

import (
	"strings"
	"time"
)

// Roles a profile can carry. RoleGuest is never stored; it is the role of a
// request with no signed-in principal.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleGuest = "guest"
)

// UserProfile is the persisted document for one principal, keyed by its uid.
//
// CreatedAt is a pointer because legacy documents may lack it; list views
// treat a nil value as the Unix epoch.
type UserProfile struct {
	UID       string     `bson:"_id" firestore:"uid" json:"uid"`
	Username  string     `bson:"username" firestore:"username" json:"username"`
	Email     string     `bson:"email" firestore:"email" json:"email"`
	PhotoURL  string     `bson:"photo_url,omitempty" firestore:"photoURL,omitempty" json:"photoURL,omitempty"`
	Role      string     `bson:"role,omitempty" firestore:"role,omitempty" json:"role,omitempty"` // user | admin
	CreatedAt *time.Time `bson:"created_at,omitempty" firestore:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// EffectiveRole returns the stored role, or RoleUser when none is set.
func (p UserProfile) EffectiveRole() string {
	r := strings.ToLower(strings.TrimSpace(p.Role))
	if r == "" {
		return RoleUser
	}
	return r
}

// CreatedAtOrEpoch returns CreatedAt, or the zero Unix time when missing.
func (p UserProfile) CreatedAtOrEpoch() time.Time {
	if p.CreatedAt == nil {
		return time.Unix(0, 0).UTC()
	}
	return *p.CreatedAt
}

// IsValidRole reports whether r may be stored on a profile.
func IsValidRole(r string) bool {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}
