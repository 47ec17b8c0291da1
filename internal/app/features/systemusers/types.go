// internal/app/features/systemusers/types.go
package systemusers

import (
	"github.com/dalemusser/anomalyhub/internal/app/system/paging"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
)

// Row used in the system users list.
type userRow struct {
	UID       string
	ShortUID  string
	Username  string
	Email     string
	Role      string
	AvatarURL string
	IsSelf    bool
	ManageURL string
}

// View model for the system users list page.
type listData struct {
	viewdata.BaseVM

	SearchQuery string
	UserRole    string // "", admin, user

	Shown   int
	Matched int
	Total   int

	Rows    []userRow
	Range   paging.Range
	PrevURL string
	NextURL string

	Notice        string
	LoadError     string
	ConfirmRemove string
}

// Form view model for New/Edit system user.
type formData struct {
	viewdata.BaseVM

	UID      string
	Username string
	Email    string
	UserRole string

	IsEdit bool
	IsSelf bool

	Error string
}

// Used by the Manage modal.
type manageModalData struct {
	UID           string
	Username      string
	Email         string
	Role          string
	IsSelf        bool
	ConfirmRemove string

	EditURL   string
	DeleteURL string
}
