// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"

	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/guard"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// SiteName is shown in the header and page titles.
const SiteName = "AnomalyHub"

// NavItem is one sidebar entry.
type NavItem struct {
	Label  string
	Href   string
	Icon   string
	Active bool
}

var (
	userNav = []NavItem{
		{Label: "Dashboard", Href: guard.PathRoot, Icon: "grid"},
		{Label: "Camera", Href: guard.PathCamera, Icon: "camera"},
		{Label: "Alert", Href: guard.PathAlert, Icon: "bell"},
		{Label: "Settings", Href: guard.PathSettings, Icon: "settings"},
	}
	adminNav = []NavItem{
		{Label: "System Users", Href: guard.PathSystemUsers, Icon: "users"},
		{Label: "Audit Log", Href: guard.PathAuditLog, Icon: "list"},
	}
)

// Flash is a one-shot message rendered as a toast.
type Flash struct {
	Kind    string // success | error
	Message string
}

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/"),
//	}
type BaseVM struct {
	SiteName string

	IsLoggedIn bool
	Role       string
	UserName   string
	UserEmail  string
	AvatarURL  string

	Nav []NavItem

	Title       string
	BackURL     string
	CurrentPath string
	CSRFToken   string

	Flash *Flash
}

// NewBaseVM builds the shell data for a page from the request context.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := BaseVM{
		SiteName:    SiteName,
		Role:        models.RoleGuest,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}

	if u, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.Role = u.Role
		vm.UserName = u.Name
		vm.UserEmail = u.Email
		vm.AvatarURL = u.PhotoURL
		if vm.UserName == "" {
			vm.UserName = "User"
		}
		vm.Nav = NavFor(u.Role, guard.Section(r.URL.Path))
	}
	return vm
}

// NavFor returns the sidebar entries visible to role, with the entry for
// the current section marked active.
func NavFor(role, section string) []NavItem {
	src := userNav
	if role == models.RoleAdmin {
		src = adminNav
	}
	out := make([]NavItem, len(src))
	for i, item := range src {
		item.Active = item.Href == section
		out[i] = item
	}
	return out
}

// WithFlash returns vm carrying msg as a success or error toast.
func (vm BaseVM) WithFlash(ok bool, msg string) BaseVM {
	if msg == "" {
		vm.Flash = nil
		return vm
	}
	kind := "error"
	if ok {
		kind = "success"
	}
	vm.Flash = &Flash{Kind: kind, Message: msg}
	return vm
}
