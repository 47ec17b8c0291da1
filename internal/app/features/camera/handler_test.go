package camera_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/dalemusser/anomalyhub/internal/app/features/camera"
	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/system/detection"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"go.uber.org/zap"
)

type fakeDetector struct {
	srv    *httptest.Server
	calls  atomic.Int32
	status int
	got    models.CameraConfig
}

func newFakeDetector(t *testing.T, status int) *fakeDetector {
	t.Helper()
	fd := &fakeDetector{status: status}
	fd.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/addCamera" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		fd.calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&fd.got)
		w.WriteHeader(fd.status)
	}))
	t.Cleanup(fd.srv.Close)
	return fd
}

func newHandler(baseURL string) *camera.Handler {
	logger := zap.NewNop()
	return camera.NewHandler(detection.NewClient(baseURL), uierrors.NewErrorLogger(logger), logger)
}

func serve(fn http.HandlerFunc, rec *httptest.ResponseRecorder, req *http.Request) {
	defer func() { _ = recover() }()
	fn(rec, req)
}

func postCamera(user testutil.TestUser, name, rtsp string) *http.Request {
	body := url.Values{"cameraName": {name}, "rtspUrl": {rtsp}}.Encode()
	return testutil.WithUser(testutil.NewFormRequest("/camera", body), user)
}

func TestHandleAddCamera_InvalidRTSP_SkipsNetwork(t *testing.T) {
	fd := newFakeDetector(t, http.StatusOK)
	h := newHandler(fd.srv.URL)

	rec := httptest.NewRecorder()
	serve(h.HandleAddCamera, rec, postCamera(testutil.RegularUser(), "Lobby", "http://10.0.0.2/live"))

	if n := fd.calls.Load(); n != 0 {
		t.Errorf("detection server called %d times, want 0", n)
	}
}

func TestHandleAddCamera_MissingName_SkipsNetwork(t *testing.T) {
	fd := newFakeDetector(t, http.StatusOK)
	h := newHandler(fd.srv.URL)

	rec := httptest.NewRecorder()
	serve(h.HandleAddCamera, rec, postCamera(testutil.RegularUser(), "  ", "rtsp://10.0.0.2/live"))

	if n := fd.calls.Load(); n != 0 {
		t.Errorf("detection server called %d times, want 0", n)
	}
}

func TestHandleAddCamera_Valid_PostsConfig(t *testing.T) {
	fd := newFakeDetector(t, http.StatusOK)
	h := newHandler(fd.srv.URL)
	user := testutil.RegularUser()

	rec := httptest.NewRecorder()
	serve(h.HandleAddCamera, rec, postCamera(user, " Lobby ", "rtsp://10.0.0.2/live"))

	if n := fd.calls.Load(); n != 1 {
		t.Fatalf("detection server called %d times, want 1", n)
	}
	want := models.CameraConfig{UserID: user.ID, CameraName: "Lobby", RTSPURL: "rtsp://10.0.0.2/live"}
	if fd.got != want {
		t.Errorf("payload = %+v, want %+v", fd.got, want)
	}
}

func TestHandleAddCamera_UpstreamFailure_StillCalledOnce(t *testing.T) {
	fd := newFakeDetector(t, http.StatusInternalServerError)
	h := newHandler(fd.srv.URL)

	rec := httptest.NewRecorder()
	serve(h.HandleAddCamera, rec, postCamera(testutil.RegularUser(), "Lobby", "rtsp://10.0.0.2/live"))

	if n := fd.calls.Load(); n != 1 {
		t.Errorf("detection server called %d times, want 1", n)
	}
}

func TestHandleAddCamera_NoUser_Unauthorized(t *testing.T) {
	fd := newFakeDetector(t, http.StatusOK)
	h := newHandler(fd.srv.URL)

	rec := httptest.NewRecorder()
	body := url.Values{"cameraName": {"Lobby"}, "rtspUrl": {"rtsp://x"}}.Encode()
	serve(h.HandleAddCamera, rec, testutil.NewFormRequest("/camera", body))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if n := fd.calls.Load(); n != 0 {
		t.Errorf("detection server called %d times, want 0", n)
	}
}
