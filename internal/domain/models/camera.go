// internal/domain/models/camera.go
package models

import (
	"errors"
	"strings"
)

// RTSPPrefix is the scheme every camera stream URL must start with.
const RTSPPrefix = "rtsp://"

var (
	ErrInvalidRTSPURL    = errors.New("rtsp url must start with rtsp://")
	ErrMissingCameraName = errors.New("camera name is required")
)

// CameraConfig is the payload sent to the detection server to register a
// camera. It is not stored by this app.
type CameraConfig struct {
	UserID     string `json:"userId"`
	CameraName string `json:"cameraName"`
	RTSPURL    string `json:"rtspUrl"`
}

// Validate checks the form input before any network call.
func (c CameraConfig) Validate() error {
	if strings.TrimSpace(c.CameraName) == "" {
		return ErrMissingCameraName
	}
	if !strings.HasPrefix(c.RTSPURL, RTSPPrefix) {
		return ErrInvalidRTSPURL
	}
	return nil
}

// CameraMessage maps a Validate error to the text shown on the form.
func CameraMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRTSPURL):
		return "Invalid RTSP URL format. It must start with 'rtsp://'."
	case errors.Is(err, ErrMissingCameraName):
		return "Please enter a camera name."
	}
	return "Failed to add camera. Check server logs."
}

// DetectionLogEntry is one item of the detection server's /logs array.
// Timestamp is formatted like "cam1_20240102_153045" or "20240102_153045".
type DetectionLogEntry struct {
	Camera    string `json:"camera"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	File      string `json:"file"`
}
