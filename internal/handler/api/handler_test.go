package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"flowgate/internal/console"
	"flowgate/internal/guard"
	"flowgate/internal/ratelimit"
	"flowgate/internal/upstream"
	applogger "flowgate/pkg/logger"
)

// fakeBackend answers the backend API routes the gateway exercises. Sessions
// "admin-tok" and "user-tok" resolve; anything else is unauthenticated.
type fakeBackend struct {
	resyncCalls atomic.Int64
}

func (b *fakeBackend) handler() http.HandlerFunc {
	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
	role := func(r *http.Request) string {
		ck, err := r.Cookie("efi_session")
		if err != nil {
			return ""
		}
		switch ck.Value {
		case "admin-tok":
			return "admin"
		case "user-tok":
			return "user"
		}
		return ""
	}

	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/auth/request-link":
			writeJSON(w, http.StatusOK, `{"status":"ok"}`)
		case r.URL.Path == "/api/v1/auth/consume-link":
			var req struct {
				Token string `json:"token"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Token != "good" {
				writeJSON(w, http.StatusUnauthorized, `{"detail":"Invalid or expired token"}`)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "efi_session", Value: "admin-tok", HttpOnly: true})
			writeJSON(w, http.StatusOK, `{"user":{"id":"u1","email":"ops@example.com","role":"admin"}}`)
		case r.URL.Path == "/api/v1/me":
			switch role(r) {
			case "admin":
				writeJSON(w, http.StatusOK, `{"id":"u1","email":"ops@example.com","role":"admin"}`)
			case "user":
				writeJSON(w, http.StatusOK, `{"id":"u2","email":"viewer@example.com","role":"user"}`)
			default:
				writeJSON(w, http.StatusUnauthorized, `{"detail":"Not authenticated"}`)
			}
		case r.URL.Path == "/api/v1/exchanges" || r.URL.Path == "/api/v1/admin/exchanges" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, `[{"id":"e1","name":"Binance","slug":"binance","created_at":"2025-03-01T00:00:00Z"}]`)
		case r.URL.Path == "/api/v1/alerts/live":
			writeJSON(w, http.StatusOK, `[]`)
		case r.URL.Path == "/api/v1/admin/addresses" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, `[]`)
		case r.URL.Path == "/api/v1/admin/sync-state":
			writeJSON(w, http.StatusOK, `[]`)
		case r.URL.Path == "/api/v1/admin/jobs/resync":
			b.resyncCalls.Add(1)
			writeJSON(w, http.StatusAccepted, `{"status":"enqueued"}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"detail":"Not found"}`)
		}
	}
}

func newGateway(t *testing.T, opts ...HandlerOption) (*echo.Echo, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	log := applogger.Nop()
	up := upstream.New(srv.URL, log)
	g := guard.New("efi_session", up, log)
	consoles := console.NewRegistry(up, log, time.Minute, nil)

	h := NewGatewayHandler(up, g, consoles, log, opts...)

	e := echo.New()
	e.Use(g.SessionGate())
	h.RegisterRoutes(e)
	return e, backend
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCallbackSuccessRelaysCookieAndRedirect(t *testing.T) {
	e, _ := newGateway(t, WithRedirectDelay(time.Second))

	rec := do(e, httptest.NewRequest(http.MethodGet, "/auth/callback?token=good", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "efi_session", cookies[0].Name)
	require.Equal(t, "admin-tok", cookies[0].Value)

	require.Equal(t, "1;url=/dashboard", rec.Header().Get("Refresh"))
	require.Contains(t, rec.Body.String(), `"redirect_after_ms":1000`)
	require.Contains(t, rec.Body.String(), "Login successful!")
}

func TestCallbackMissingToken(t *testing.T) {
	e, _ := newGateway(t)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "No token provided")
}

func TestCallbackInvalidToken(t *testing.T) {
	e, _ := newGateway(t)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/auth/callback?token=spent", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid or expired token")
	require.Empty(t, rec.Result().Cookies())
}

func TestDashboardRequiresSession(t *testing.T) {
	e, _ := newGateway(t)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestDashboardRendersForUser(t *testing.T) {
	e, _ := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "user-tok"})
	rec := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "viewer@example.com")
	require.Contains(t, rec.Body.String(), "binance")
}

func TestAdminConsoleNonAdminRedirects(t *testing.T) {
	e, _ := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/console", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "user-tok"})
	rec := do(e, req)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestAdminConsoleSnapshot(t *testing.T) {
	e, _ := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/console", nil)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "admin-tok"})
	rec := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"active_tab":"exchanges"`)
}

func TestResyncUnconfirmedRejected(t *testing.T) {
	e, backend := newGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/console/resync", strings.NewReader(`{"confirmed":false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "admin-tok"})
	rec := do(e, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, backend.resyncCalls.Load(), "declined resync must not reach the backend")
}

func TestResyncConfirmedFormCheckbox(t *testing.T) {
	e, backend := newGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/console/resync", strings.NewReader("confirmed=on"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: "efi_session", Value: "admin-tok"})
	rec := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Resync triggered")
	require.Equal(t, int64(1), backend.resyncCalls.Load())
}

func TestMagicLinkRateLimited(t *testing.T) {
	e, _ := newGateway(t, WithRateLimiter(ratelimit.NewMemoryLimiter(1, time.Hour)))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login/request", strings.NewReader(`{"email":"ops@example.com"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return do(e, req)
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, first.Body.String(), "Magic link sent! Check your email.")

	second := send()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestMagicLinkInvalidEmailRejected(t *testing.T) {
	e, _ := newGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/login/request", strings.NewReader(`{"email":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := do(e, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
