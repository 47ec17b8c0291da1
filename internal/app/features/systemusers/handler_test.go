package systemusers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	uierrors "github.com/dalemusser/anomalyhub/internal/app/features/errors"
	"github.com/dalemusser/anomalyhub/internal/app/features/systemusers"
	"github.com/dalemusser/anomalyhub/internal/app/system/auth"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/domain/models"
	"github.com/dalemusser/anomalyhub/internal/testutil"
	"github.com/dalemusser/anomalyhub/internal/testutil/fakeid"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*systemusers.Handler, *fakeid.Backend) {
	t.Helper()
	logger := zap.NewNop()
	be := fakeid.New()
	return systemusers.NewHandler(be.Service(nil), uierrors.NewErrorLogger(logger), nil, logger), be
}

func serve(fn http.HandlerFunc, rec *httptest.ResponseRecorder, req *http.Request) {
	defer func() { _ = recover() }()
	fn(rec, req)
}

func adminUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:         "admin-1",
		Name:       "Test Admin",
		Email:      "admin@test.com",
		Role:       models.RoleAdmin,
		SignedInAt: time.Now(),
	}
}

func adminForm(target string, vals url.Values) *http.Request {
	return auth.WithTestUser(testutil.NewFormRequest(target, vals.Encode()), adminUser())
}

func TestHandleCreate_Success(t *testing.T) {
	h, be := newTestHandler(t)

	req := adminForm("/system-users", url.Values{
		"username": {"New User"},
		"email":    {"New@Example.com"},
		"password": {"secret1"},
		"role":     {"admin"},
	})
	rec := testutil.NewRecorder()
	h.HandleCreate(rec.ResponseRecorder, req)

	rec.AssertRedirect(t, "/system-users?notice=created")

	p, err := be.Accounts.FindByEmail(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	prof, err := be.Profiles.Get(context.Background(), p.UID)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if prof.Username != "New User" || prof.Role != models.RoleAdmin || prof.CreatedAt == nil {
		t.Errorf("unexpected profile %+v", prof)
	}
	if be.Accounts.SecondaryOpened != 1 || be.Accounts.SecondaryClosed != 1 || be.Accounts.SecondarySignedOut != 1 {
		t.Errorf("secondary context not disposed: opened=%d signedOut=%d closed=%d",
			be.Accounts.SecondaryOpened, be.Accounts.SecondarySignedOut, be.Accounts.SecondaryClosed)
	}
}

func TestHandleCreate_ShortPassword_NoBackendCall(t *testing.T) {
	h, be := newTestHandler(t)

	req := adminForm("/system-users", url.Values{
		"username": {"Short"},
		"email":    {"short@example.com"},
		"password": {"abc"},
	})
	rec := httptest.NewRecorder()
	serve(h.HandleCreate, rec, req)

	if n := be.Accounts.TotalCalls(); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
	if rec.Header().Get("Location") != "" {
		t.Error("expected the form to re-render, not redirect")
	}
}

func TestHandleCreate_MalformedEmail_NoBackendCall(t *testing.T) {
	h, be := newTestHandler(t)

	req := adminForm("/system-users", url.Values{
		"username": {"Odd"},
		"email":    {"odd..name@example.com"},
		"password": {"secret1"},
	})
	rec := httptest.NewRecorder()
	serve(h.HandleCreate, rec, req)

	if n := be.Accounts.TotalCalls(); n != 0 {
		t.Errorf("expected no backend calls, got %d", n)
	}
	if rec.Header().Get("Location") != "" {
		t.Error("expected the form to re-render, not redirect")
	}
}

func TestHandleCreate_DuplicateEmail_DisposesSecondary(t *testing.T) {
	h, be := newTestHandler(t)
	be.Accounts.Seed("dup@example.com", "secret1", "Dup")

	req := adminForm("/system-users", url.Values{
		"username": {"Dup Two"},
		"email":    {"dup@example.com"},
		"password": {"secret1"},
	})
	rec := httptest.NewRecorder()
	serve(h.HandleCreate, rec, req)

	if rec.Header().Get("Location") != "" {
		t.Error("expected no redirect on failure")
	}
	if be.Accounts.SecondaryOpened != be.Accounts.SecondaryClosed {
		t.Errorf("secondary leaked: opened=%d closed=%d", be.Accounts.SecondaryOpened, be.Accounts.SecondaryClosed)
	}
}

func TestHandleEdit_UpdatesProfile(t *testing.T) {
	h, be := newTestHandler(t)
	be.Profiles.Put(models.UserProfile{UID: "u9", Username: "Old", Email: "old@x.com", Role: "user"})

	req := adminForm("/system-users/u9", url.Values{
		"username": {"New Name"},
		"email":    {"new@x.com"},
		"role":     {"admin"},
	})
	req = testutil.WithChiURLParam(req, "uid", "u9")
	rec := testutil.NewRecorder()
	h.HandleEdit(rec.ResponseRecorder, req)

	rec.AssertRedirect(t, "/system-users?notice=updated")
	prof, _ := be.Profiles.Get(context.Background(), "u9")
	if prof.Username != "New Name" || prof.Email != "new@x.com" || prof.Role != "admin" {
		t.Errorf("unexpected profile %+v", prof)
	}
}

func TestHandleEdit_SelfDemotion_Refused(t *testing.T) {
	h, be := newTestHandler(t)
	be.Profiles.Put(models.UserProfile{UID: "admin-1", Username: "Me", Email: "admin@test.com", Role: "admin"})

	req := adminForm("/system-users/admin-1", url.Values{
		"username": {"Me"},
		"email":    {"admin@test.com"},
		"role":     {"user"},
	})
	req = testutil.WithChiURLParam(req, "uid", "admin-1")
	rec := httptest.NewRecorder()
	serve(h.HandleEdit, rec, req)

	prof, _ := be.Profiles.Get(context.Background(), "admin-1")
	if prof.Role != "admin" {
		t.Errorf("role changed to %q", prof.Role)
	}
}

func TestHandleDelete_RemovesProfileOnly(t *testing.T) {
	h, be := newTestHandler(t)
	p := be.Accounts.Seed("bye@x.com", "secret1", "Bye")
	be.Profiles.Put(models.UserProfile{UID: p.UID, Username: "Bye", Email: "bye@x.com"})

	req := auth.WithTestUser(httptest.NewRequest("POST", "/system-users/"+p.UID+"/delete", nil), adminUser())
	req = testutil.WithChiURLParam(req, "uid", p.UID)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if got := rec.Header().Get("HX-Redirect"); got != "/system-users?notice=removed" {
		t.Errorf("HX-Redirect = %q", got)
	}
	if _, err := be.Profiles.Get(context.Background(), p.UID); err != identity.ErrProfileNotFound {
		t.Errorf("profile should be gone, got err=%v", err)
	}
	if !be.Accounts.Exists(p.UID) {
		t.Error("account must survive profile removal")
	}
}

func TestHandleDelete_Self_Refused(t *testing.T) {
	h, be := newTestHandler(t)
	be.Profiles.Put(models.UserProfile{UID: "admin-1", Username: "Me", Role: "admin"})

	req := auth.WithTestUser(httptest.NewRequest("POST", "/system-users/admin-1/delete", nil), adminUser())
	req = testutil.WithChiURLParam(req, "uid", "admin-1")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if _, err := be.Profiles.Get(context.Background(), "admin-1"); err != nil {
		t.Errorf("own profile should remain: %v", err)
	}
}

func TestRoutes_NonAdminForbidden(t *testing.T) {
	h, _ := newTestHandler(t)
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	router := systemusers.Routes(h, sm)

	req := testutil.NewAuthenticatedRequest("GET", "/", testutil.RegularUser())
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/forbidden" {
		t.Errorf("expected redirect to /forbidden, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHandleEdit_ReturnsToFilteredPage(t *testing.T) {
	h, be := newTestHandler(t)
	be.Profiles.Put(models.UserProfile{UID: "u9", Username: "Old", Email: "old@x.com", Role: "user"})

	req := adminForm("/system-users/u9", url.Values{
		"username": {"Old"},
		"email":    {"old@x.com"},
		"role":     {"user"},
		"return":   {"/system-users?role=user&start=51&notice=created"},
	})
	req = testutil.WithChiURLParam(req, "uid", "u9")
	rec := testutil.NewRecorder()
	h.HandleEdit(rec.ResponseRecorder, req)

	rec.AssertRedirect(t, "/system-users?notice=updated&role=user&start=51")
}

func TestHandleEdit_IgnoresLoopingReturn(t *testing.T) {
	h, be := newTestHandler(t)
	be.Profiles.Put(models.UserProfile{UID: "u9", Username: "Old", Email: "old@x.com", Role: "user"})

	req := adminForm("/system-users/u9", url.Values{
		"username": {"Old"},
		"email":    {"old@x.com"},
		"role":     {"user"},
		"return":   {"/system-users/u9/edit"},
	})
	req = testutil.WithChiURLParam(req, "uid", "u9")
	rec := testutil.NewRecorder()
	h.HandleEdit(rec.ResponseRecorder, req)

	rec.AssertRedirect(t, "/system-users?notice=updated")
}

func TestHandleDelete_HonorsReturnQuery(t *testing.T) {
	h, be := newTestHandler(t)
	be.Profiles.Put(models.UserProfile{UID: "u5", Username: "Gone", Role: "user"})

	target := "/system-users/u5/delete?return=" + url.QueryEscape("/system-users?search=go")
	req := auth.WithTestUser(httptest.NewRequest("POST", target, nil), adminUser())
	req = testutil.WithChiURLParam(req, "uid", "u5")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req)

	if got := rec.Header().Get("HX-Redirect"); got != "/system-users?notice=removed&search=go" {
		t.Errorf("HX-Redirect = %q", got)
	}
}
