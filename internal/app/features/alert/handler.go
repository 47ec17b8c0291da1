// internal/app/features/alert/handler.go
package alert

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/navigation"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MsgConfirmDelete is the prompt shown before an alert is deleted.
const MsgConfirmDelete = "Are you sure you want to delete this alert?"

// keepAlive is how often an idle stream sends a comment line.
const keepAlive = 25 * time.Second

type Handler struct {
	Identity *identity.Service
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	Location *time.Location

	// Fragment renders the alert list into w. It defaults to the
	// "alert_list" template.
	Fragment func(w http.ResponseWriter, data ListData)
}

func NewHandler(svc *identity.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Identity: svc,
		Log:      logger,
		ErrLog:   errLog,
		Location: time.Local,
		Fragment: func(w http.ResponseWriter, data ListData) {
			templates.RenderSnippet(w, "alert_list", data)
		},
	}
}

// ListData feeds the alert_list fragment.
type ListData struct {
	Rows          []Row
	Loading       bool
	ConfirmDelete string
}

type pageData struct {
	viewdata.BaseVM
	List      ListData
	StreamURL string
}

// streamURL carries the deep link into the live stream so highlighting
// survives re-renders. scrolled tells the stream the scroll is used up.
func streamURL(f *FocusOnce) string {
	if f.Ref() == "" {
		return "/alert/stream"
	}
	v := url.Values{"focus": {f.Ref()}}
	if f.Done() {
		v.Set("scrolled", "1")
	}
	return "/alert/stream?" + v.Encode()
}

// ServeAlerts renders the alert history page. The first list comes from a
// one-shot read; the page then switches to the live stream.
func (h *Handler) ServeAlerts(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	base := viewdata.NewBaseVM(r, "Alerts", "/")
	focus := NewFocusOnce(strings.TrimSpace(query.Get(r, "focus")), false)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list alerts")
	defer cancel()

	list := ListData{ConfirmDelete: MsgConfirmDelete}
	alerts, err := h.Identity.ListAlerts(ctx, u.ID)
	if err != nil {
		h.Log.Error("failed to fetch alerts", zap.Error(err), zap.String("uid", u.ID))
		list.Loading = true
	} else {
		list.Rows = BuildRows(alerts, focus.Ref(), focus.Take(alerts), h.Location)
	}

	templates.Render(w, r, "alert", pageData{
		BaseVM:    base,
		List:      list,
		StreamURL: streamURL(focus),
	})
}

// ServeStream pushes a freshly rendered list every time the user's alerts
// change, until the client goes away.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	focus := NewFocusOnce(strings.TrimSpace(query.Get(r, "focus")), query.Get(r, "scrolled") == "1")
	ctx := r.Context()
	log := h.Log.Named("alert-stream").With(zap.String("uid", u.ID))

	snaps, err := h.Identity.SubscribeAlerts(ctx, u.ID)
	if err != nil {
		log.Error("subscribe alerts failed", zap.Error(err))
		http.Error(w, "alerts unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case alerts, open := <-snaps:
			if !open {
				log.Debug("alert subscription closed")
				return
			}
			buf := newFragmentBuffer()
			h.Fragment(buf, ListData{
				Rows:          BuildRows(alerts, focus.Ref(), focus.Take(alerts), h.Location),
				ConfirmDelete: MsgConfirmDelete,
			})
			if err := WriteEvent(w, "alerts", buf.String()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleDelete removes one alert owned by the current user.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	isHTMX := r.Header.Get("HX-Request") == "true"
	back := navigation.SafeBackURL(r, navigation.AlertBackURL)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete alert")
	defer cancel()

	res := h.Identity.DeleteAlert(ctx, u.ID, id)
	if !res.OK {
		if isHTMX {
			uierrors.HTMXError(w, http.StatusBadRequest, res.Message)
			return
		}
		uierrors.RenderBadRequest(w, r, res.Message, back)
		return
	}

	h.Log.Info("alert deleted", zap.String("uid", u.ID), zap.String("alert", id))

	if isHTMX {
		// The row is swapped out; the stream catches up on its own.
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
