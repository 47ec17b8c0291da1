// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/system/detection"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often the log panel refreshes.
const DefaultPollInterval = 2 * time.Second

type Handler struct {
	Detection    *detection.Client
	Log          *zap.Logger
	PollInterval time.Duration
}

func NewHandler(client *detection.Client, poll time.Duration, logger *zap.Logger) *Handler {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Handler{
		Detection:    client,
		Log:          logger,
		PollInterval: poll,
	}
}

type dashboardData struct {
	viewdata.BaseVM
	Now        string
	PollMillis int64
}

type logsData struct {
	Entries []detection.ViewEntry
}

// ServeDashboard renders the live view: clock, video and detection log.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "dashboard", dashboardData{
		BaseVM:     viewdata.NewBaseVM(r, "Dashboard", "/"),
		Now:        time.Now().Format("15:04:05"),
		PollMillis: h.PollInterval.Milliseconds(),
	})
}

// ServeLogs renders the detection log fragment polled by the dashboard.
// An unreachable detection server shows as an empty log.
func (h *Handler) ServeLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "dashboard logs")
	defer cancel()

	entries, err := h.Detection.Logs(ctx)
	if err != nil {
		h.Log.Warn("detection logs unavailable", zap.Error(err))
	}

	w.Header().Set("Cache-Control", "no-store")
	templates.RenderSnippet(w, "dashboard_logs", logsData{Entries: detection.ViewEntries(entries)})
}

// ServeVideo relays the annotated MJPEG stream from the detection server.
func (h *Handler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Stream(), h.Log, "video stream")
	defer cancel()

	sw := &streamWriter{ResponseWriter: w}
	if err := h.Detection.StreamVideo(ctx, sw); err != nil {
		if sw.wrote {
			h.Log.Warn("video stream interrupted", zap.Error(err))
			return
		}
		h.Log.Warn("video stream unavailable", zap.Error(err))
		http.Error(w, "video stream unavailable", http.StatusBadGateway)
	}
}

// streamWriter remembers whether the response has started.
type streamWriter struct {
	http.ResponseWriter
	wrote bool
}

func (s *streamWriter) WriteHeader(code int) {
	s.wrote = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *streamWriter) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

func (s *streamWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
