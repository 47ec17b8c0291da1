package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/anomalyhub/internal/app/system/detection"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client    *mongo.Client
	Backend   string
	Detection *detection.Client
	Log       *zap.Logger
}

// NewHandler constructs a health Handler. backend is the identity backend
// name reported in the response; client may be nil to skip the detection
// server probe.
func NewHandler(mc *mongo.Client, backend string, client *detection.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Client:    mc,
		Backend:   backend,
		Detection: client,
		Log:       logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Identity  string `json:"identity"`
	Detection string `json:"detection,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "identity":"mongo", "detection":"reachable" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
//
// The detection server is informational only and never fails the check.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Identity: h.Backend,
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	if h.Detection != nil {
		dctx, dcancel := context.WithTimeout(r.Context(), timeouts.Ping())
		defer dcancel()
		if _, err := h.Detection.Logs(dctx); err != nil {
			h.Log.Debug("health-check: detection server unreachable", zap.Error(err))
			resp.Detection = "unreachable"
		} else {
			resp.Detection = "reachable"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
