// internal/app/features/errors/logger.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"go.uber.org/zap"
)

// ErrorLogger logs a handler failure with request context and renders the
// matching error page.
//
//	h.ErrLog.LogServerError(w, r, "list users failed", err, "Failed to load users.", "/")
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("uid", u.ID))
	}
	return fs
}

// LogServerError logs at Error and renders a 500 page.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Error(msg, e.fields(r, err)...)
	RenderServerError(w, r, userMsg, backURL)
}

// LogBadRequest logs at Warn and renders a 400 page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Warn(msg, e.fields(r, err)...)
	RenderBadRequest(w, r, userMsg, backURL)
}

// HTMXLogServerError is LogServerError for htmx fragment requests.
func (e *ErrorLogger) HTMXLogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Error(msg, e.fields(r, err)...)
	HTMXError(w, http.StatusInternalServerError, userMsg)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
