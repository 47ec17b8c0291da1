// internal/app/features/camera/handler.go
package camera

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/detection"
	"github.com/dalemusser/anomalyhub/internal/app/system/timeouts"
	"github.com/dalemusser/anomalyhub/internal/app/system/viewdata"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// MsgCameraAdded is the flash shown after the detection server accepts a camera.
const MsgCameraAdded = "Camera added successfully!"

type Handler struct {
	Detection *detection.Client
	Log       *zap.Logger
	ErrLog    *uierrors.ErrorLogger
}

func NewHandler(client *detection.Client, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Detection: client,
		Log:       logger,
		ErrLog:    errLog,
	}
}

type cameraFormData struct {
	viewdata.BaseVM
	CameraName string
	RTSPURL    string
}

// ServeCamera renders the add-camera form.
func (h *Handler) ServeCamera(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, cameraFormData{BaseVM: viewdata.NewBaseVM(r, "Camera", "/")})
}

// HandleAddCamera validates the form and registers the camera with the
// detection server. Values are kept on failure and cleared on success.
func (h *Handler) HandleAddCamera(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/camera")
		return
	}

	cfg := models.CameraConfig{
		UserID:     u.ID,
		CameraName: strings.TrimSpace(r.FormValue("cameraName")),
		RTSPURL:    strings.TrimSpace(r.FormValue("rtspUrl")),
	}
	data := cameraFormData{
		BaseVM:     viewdata.NewBaseVM(r, "Camera", "/"),
		CameraName: cfg.CameraName,
		RTSPURL:    cfg.RTSPURL,
	}

	if err := cfg.Validate(); err != nil {
		data.BaseVM = data.BaseVM.WithFlash(false, models.CameraMessage(err))
		h.render(w, r, data)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "add camera")
	defer cancel()

	if err := h.Detection.AddCamera(ctx, cfg); err != nil {
		h.Log.Warn("add camera failed",
			zap.Error(err),
			zap.String("uid", u.ID),
			zap.String("camera", cfg.CameraName))
		data.BaseVM = data.BaseVM.WithFlash(false, models.CameraMessage(err))
		h.render(w, r, data)
		return
	}

	h.Log.Info("camera added", zap.String("uid", u.ID), zap.String("camera", cfg.CameraName))
	h.render(w, r, cameraFormData{
		BaseVM: viewdata.NewBaseVM(r, "Camera", "/").WithFlash(true, MsgCameraAdded),
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data cameraFormData) {
	templates.Render(w, r, "camera", data)
}
