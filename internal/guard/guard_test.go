package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"flowgate/internal/domain/models"
	"flowgate/internal/upstream"
	applogger "flowgate/pkg/logger"
)

type stubResolver struct {
	user *models.User
	err  error
}

func (s *stubResolver) CurrentUser(context.Context, upstream.Session) (*models.User, error) {
	return s.user, s.err
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := mw(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, reached
}

func runChained(t *testing.T, first, second echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := first(second(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	}))
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, reached
}

func TestSessionGatePublicPaths(t *testing.T) {
	g := New("efi_session", &stubResolver{}, applogger.Nop())

	for _, path := range []string{"/login", "/auth/callback", "/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		_, reached := run(t, g.SessionGate(), req)
		if !reached {
			t.Fatalf("public path %s should pass without a cookie", path)
		}
	}
}

func TestSessionGateMissingCookieRedirects(t *testing.T) {
	g := New("efi_session", &stubResolver{}, applogger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec, reached := run(t, g.SessionGate(), req)
	if reached {
		t.Fatalf("guarded path reached without cookie")
	}
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestSessionGateCookiePasses(t *testing.T) {
	g := New("efi_session", &stubResolver{}, applogger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "tok"})
	_, reached := run(t, g.SessionGate(), req)
	if !reached {
		t.Fatalf("cookie-bearing request blocked")
	}
}

func TestRequireUserResolutionFailureRedirects(t *testing.T) {
	g := New("efi_session", &stubResolver{err: context.DeadlineExceeded}, applogger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "stale"})
	rec, reached := runChained(t, g.SessionGate(), g.RequireUser(), req)
	if reached {
		t.Fatalf("handler reached despite failed identity resolution")
	}
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireUserStoresIdentity(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ops@example.com", Role: models.RoleUser}
	g := New("efi_session", &stubResolver{user: user}, applogger.Nop())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "tok"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := g.SessionGate()(g.RequireUser()(func(c echo.Context) error {
		if got := UserFrom(c); got == nil || got.ID != "u1" {
			t.Fatalf("user not stored in context: %+v", got)
		}
		if got := SessionFrom(c); got != "tok" {
			t.Fatalf("session not stored in context: %q", got)
		}
		return c.NoContent(http.StatusOK)
	}))
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRequireAdminNonAdminRedirectsToDashboard(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ops@example.com", Role: models.RoleUser}
	g := New("efi_session", &stubResolver{user: user}, applogger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/admin/console", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "tok"})
	rec, reached := runChained(t, g.SessionGate(), g.RequireAdmin(), req)
	if reached {
		t.Fatalf("non-admin reached admin handler")
	}
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireAdminAdminPasses(t *testing.T) {
	user := &models.User{ID: "u1", Email: "ops@example.com", Role: models.RoleAdmin}
	g := New("efi_session", &stubResolver{user: user}, applogger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/admin/console", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "tok"})
	_, reached := runChained(t, g.SessionGate(), g.RequireAdmin(), req)
	if !reached {
		t.Fatalf("admin blocked from admin handler")
	}
}
