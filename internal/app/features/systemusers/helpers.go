// internal/app/features/systemusers/helpers.go
package systemusers

import (
	"net/http"
	"strings"

	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	textfold "github.com/dalemusser/waffle/pantry/text"
)

const listURL = "/system-users"

// noticeMessages maps ?notice= codes set after a redirect.
var noticeMessages = map[string]string{
	"created": "User created successfully",
	"updated": "User updated successfully",
	"removed": identity.MsgUserRemoved,
}

// currentAdmin returns the signed-in admin. RequireRole("admin") in
// routes.go has already gated the request.
func currentAdmin(r *http.Request) (*auth.SessionUser, bool) {
	return auth.CurrentUser(r)
}

// formBase builds the form view model base with back as both the Cancel
// link and the hidden return value.
func formBase(r *http.Request, title, back string) viewdata.BaseVM {
	vm := viewdata.NewBaseVM(r, title, back)
	vm.BackURL = back
	return vm
}

func shortUID(uid string) string {
	if uid == "" {
		return "N/A"
	}
	if len(uid) <= 8 {
		return uid
	}
	return uid[:8] + "..."
}

func displayName(p models.UserProfile) string {
	if p.Username != "" {
		return p.Username
	}
	return "Unknown"
}

func avatarFor(p models.UserProfile) string {
	if p.PhotoURL != "" {
		return p.PhotoURL
	}
	name := p.Username
	if name == "" {
		name = "User"
	}
	return identity.AvatarURL(name)
}

// filterRows keeps profiles whose username (case and accent folded) or
// email contains q, and whose role matches role when one is given.
func filterRows(list []models.UserProfile, q, role, selfUID string) []userRow {
	qFold := textfold.Fold(strings.TrimSpace(q))
	rows := make([]userRow, 0, len(list))
	for _, p := range list {
		effRole := p.EffectiveRole()
		if role != "" && effRole != role {
			continue
		}
		if qFold != "" &&
			!strings.Contains(textfold.Fold(p.Username), qFold) &&
			!strings.Contains(strings.ToLower(p.Email), strings.ToLower(strings.TrimSpace(q))) {
			continue
		}
		rows = append(rows, userRow{
			UID:       p.UID,
			ShortUID:  shortUID(p.UID),
			Username:  displayName(p),
			Email:     p.Email,
			Role:      effRole,
			AvatarURL: avatarFor(p),
			IsSelf:    p.UID == selfUID,
		})
	}
	return rows
}
