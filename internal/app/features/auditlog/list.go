// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/store/audit"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/paging"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/timezones"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const listURL = "/audit"

// filters are the query parameters the list page understands.
type filters struct {
	Category  string
	EventType string
	UID       string
	StartDate string
	EndDate   string
	TZ        string // curated zone id; "" is UTC
}

func parseFilters(r *http.Request) filters {
	f := filters{
		Category:  strings.TrimSpace(query.Get(r, "category")),
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
		UID:       strings.TrimSpace(query.Get(r, "uid")),
		StartDate: strings.TrimSpace(query.Get(r, "start_date")),
		EndDate:   strings.TrimSpace(query.Get(r, "end_date")),
		TZ:        strings.TrimSpace(query.Get(r, "tz")),
	}
	if !timezones.Valid(f.TZ) {
		f.TZ = ""
	}
	if f.Category != audit.CategoryAuth && f.Category != audit.CategoryAdmin {
		f.Category = ""
	}
	return f
}

// queryFilter converts the page filters into a store filter. Dates are
// whole days in the selected zone; a malformed date is ignored.
func (f filters) queryFilter(start int) audit.QueryFilter {
	qf := audit.QueryFilter{
		UID:       f.UID,
		Category:  f.Category,
		EventType: f.EventType,
		Limit:     paging.PageSize,
		Offset:    int64(start - 1),
	}
	loc := timezones.Location(f.TZ)
	if t, err := time.ParseInLocation("2006-01-02", f.StartDate, loc); err == nil {
		qf.StartTime = &t
	}
	if t, err := time.ParseInLocation("2006-01-02", f.EndDate, loc); err == nil {
		endOfDay := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		qf.EndTime = &endOfDay
	}
	return qf
}

// url rebuilds the list URL for these filters at the given page start.
func (f filters) url(start int) string {
	u := listURL
	for _, kv := range [][2]string{
		{"category", f.Category},
		{"event_type", f.EventType},
		{"uid", f.UID},
		{"start_date", f.StartDate},
		{"end_date", f.EndDate},
		{"tz", f.TZ},
	} {
		if kv[1] != "" {
			u = navigation.WithParam(u, kv[0], kv[1])
		}
	}
	if start > 1 {
		u = navigation.WithParam(u, "start", strconv.Itoa(start))
	}
	return u
}

// ServeList handles GET /audit - displays the audit log list with filtering.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	f := parseFilters(r)
	start := paging.ParseStart(r)

	total, err := h.Store.CountByFilter(ctx, f.queryFilter(start))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events failed", err, "A database error occurred.", "/system-users")
		return
	}
	// A start past the end snaps back to the last page.
	if total > 0 && int64(start) > total {
		start = int((total-1)/paging.PageSize)*paging.PageSize + 1
	}

	events, err := h.Store.Query(ctx, f.queryFilter(start))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events failed", err, "A database error occurred.", "/system-users")
		return
	}

	failed, err := h.Store.GetFailedLogins(ctx, time.Now().Add(-24*time.Hour), 1000)
	if err != nil {
		h.Log.Warn("count failed logins", zap.Error(err))
	}

	items := h.buildItems(ctx, events)
	loc := timezones.Location(f.TZ)
	for i := range items {
		items[i].Timestamp = items[i].Timestamp.In(loc)
	}
	rng := paging.ComputeRange(start, len(items))
	rng.HasNext = int64(start-1+len(items)) < total

	data := listData{
		BaseVM:         viewdata.NewBaseVM(r, "Audit Log", "/system-users"),
		Items:          items,
		Category:       f.Category,
		EventType:      f.EventType,
		UID:            f.UID,
		StartDate:      f.StartDate,
		EndDate:        f.EndDate,
		TZ:             f.TZ,
		TZLabel:        timezones.Label(loc.String()),
		TimezoneGroups: timezones.Groups(),
		Categories:     allCategories(),
		EventTypes:     eventTypesForCategory(f.Category),
		FailedLast24h:  len(failed),
		Total:          total,
		Range:          rng,
	}
	if rng.HasPrev {
		data.PrevURL = f.url(rng.PrevStart)
	}
	if rng.HasNext {
		data.NextURL = f.url(rng.NextStart)
	}

	if r.Header.Get("HX-Request") == "true" && r.Header.Get("HX-Target") == "audit-table" {
		templates.RenderSnippet(w, "audit_table", data)
		return
	}
	templates.Render(w, r, "audit_list", data)
}

// buildItems converts events to rows, resolving uids to usernames when an
// identity service is available. Unknown uids are shown as-is.
func (h *Handler) buildItems(ctx context.Context, events []audit.Event) []listItem {
	names := map[string]string{}
	if h.Identity != nil && len(events) > 0 {
		users, res := h.Identity.GetAllUsers(ctx)
		if !res.OK {
			h.Log.Warn("resolve audit usernames", zap.String("reason", res.Message))
		}
		for _, u := range users {
			if u.Username != "" {
				names[u.UID] = u.Username
			}
		}
	}
	nameOf := func(uid string) string {
		if n, ok := names[uid]; ok {
			return n
		}
		return uid
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.ActorUID != "" {
			item.ActorName = nameOf(e.ActorUID)
		}
		switch {
		case e.UID != "":
			item.TargetName = nameOf(e.UID)
		case e.Email != "":
			item.TargetName = e.Email
		}
		items = append(items, item)
	}
	return items
}
