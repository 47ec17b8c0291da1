// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/store/audit"
	"github.com/dalemusser/anomalyhub/internal/app/system/paging"
	"github.com/dalemusser/anomalyhub/internal/app/system/timezones"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
)

// listItem represents a single audit event row for display.
type listItem struct {
	ID            string
	Timestamp     time.Time
	Category      string
	EventType     string
	ActorName     string // resolved from ActorUID
	TargetName    string // resolved from UID, falling back to Email
	IP            string
	Success       bool
	FailureReason string
	Details       map[string]string
}

// listData is the view model for the audit log list page.
type listData struct {
	viewdata.BaseVM

	Items []listItem

	// Filters
	Category  string
	EventType string
	UID       string
	StartDate string
	EndDate   string
	TZ        string

	// Filter options
	Categories     []categoryOption
	EventTypes     []string
	TimezoneGroups []timezones.ZoneGroup
	TZLabel        string

	FailedLast24h int

	Total   int64
	Range   paging.Range
	PrevURL string
	NextURL string
}

// categoryOption represents a category for the filter dropdown.
type categoryOption struct {
	Value string
	Label string
}

func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication"},
		{Value: audit.CategoryAdmin, Label: "Administration"},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	switch category {
	case audit.CategoryAuth:
		return audit.AuthEvents
	case audit.CategoryAdmin:
		return audit.AdminEvents
	case "":
		all := make([]string, 0, len(audit.AuthEvents)+len(audit.AdminEvents))
		all = append(all, audit.AuthEvents...)
		all = append(all, audit.AdminEvents...)
		return all
	default:
		return nil
	}
}
