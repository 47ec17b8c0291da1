package errors_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTMXError_SetsTriggerAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	uierrors.HTMXError(rec, http.StatusBadRequest, `Bad "input"`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if rec.Header().Get("HX-Reswap") != "none" {
		t.Error("expected HX-Reswap none")
	}
	trig := rec.Header().Get("HX-Trigger")
	if !strings.Contains(trig, `"message":"Bad \"input\""`) {
		t.Errorf("message not JSON-escaped in trigger: %s", trig)
	}
}

func TestHTMXLogServerError_Logs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := uierrors.NewErrorLogger(zap.New(core))

	req := httptest.NewRequest("POST", "/alert/a1/delete", nil)
	rec := httptest.NewRecorder()
	el.HTMXLogServerError(rec, req, "delete alert failed", errors.New("boom"), "Failed to delete alert.")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "delete alert failed" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.ContextMap()["path"] != "/alert/a1/delete" {
		t.Errorf("missing path field: %v", entry.ContextMap())
	}
}
