// internal/app/features/systemusers/list.go
package systemusers

import (
	"net/http"
	"net/url"
	"strconv"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/paging"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

// ServeList handles GET /system-users.
//
// It lists every profile newest first, with an optional search over
// username/email and a role filter. Profiles without createdAt sort last.
// Results are paged with ?start=, and every row link carries the current
// list URL as ?return= so edits and removals land back on the same view.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "list system users")
	defer cancel()

	searchQ := normalize.QueryParam(query.Get(r, "search"))
	role := normalize.Role(query.Get(r, "role"))
	if !models.IsValidRole(role) {
		role = ""
	}

	users, res := h.Identity.GetAllUsers(ctx)
	matched := filterRows(users, searchQ, role, admin.ID)
	rows, rng := paging.Window(matched, paging.ParseStart(r))

	self := listSelfURL(searchQ, role, rng.Start)
	for i := range rows {
		rows[i].ManageURL = rowURL(rows[i].UID, "manage_modal", self)
	}

	data := listData{
		BaseVM:        viewdata.NewBaseVM(r, "System Users", listURL),
		SearchQuery:   searchQ,
		UserRole:      role,
		Shown:         len(rows),
		Matched:       len(matched),
		Total:         len(users),
		Rows:          rows,
		Range:         rng,
		Notice:        noticeMessages[query.Get(r, "notice")],
		ConfirmRemove: MsgConfirmRemove,
	}
	if !res.OK {
		data.LoadError = res.Message
	}
	if rng.HasPrev {
		data.PrevURL = listSelfURL(searchQ, role, rng.PrevStart)
	}
	if rng.HasNext {
		data.NextURL = listSelfURL(searchQ, role, rng.NextStart)
	}

	// htmx search/filter swaps only the table.
	if r.Header.Get("HX-Request") == "true" && r.Header.Get("HX-Target") == "users-table" {
		templates.RenderSnippet(w, "system_users_table", data)
		return
	}
	templates.Render(w, r, "system_users_list", data)
}

// listSelfURL rebuilds the list URL for the given filters and page start.
func listSelfURL(search, role string, start int) string {
	u := listURL
	if search != "" {
		u = navigation.WithParam(u, "search", search)
	}
	if role != "" {
		u = navigation.WithParam(u, "role", role)
	}
	if start > 1 {
		u = navigation.WithParam(u, "start", strconv.Itoa(start))
	}
	return u
}

// rowURL builds /system-users/{uid}/{action}?return=back.
func rowURL(uid, action, back string) string {
	return listURL + "/" + url.PathEscape(uid) + "/" + action + "?return=" + url.QueryEscape(back)
}
