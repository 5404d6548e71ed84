package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"flowgate/internal/domain/models"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, applogger.Nop())
}

func TestSessionCookieForwarded(t *testing.T) {
	var gotCookie string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("efi_session"); err == nil {
			gotCookie = ck.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","email":"ops@example.com","role":"admin"}`))
	})

	if _, err := c.CurrentUser(context.Background(), "tok-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCookie != "tok-123" {
		t.Fatalf("session cookie not forwarded, got %q", gotCookie)
	}
}

func TestErrorDetailPreserved(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Slug already exists"}`))
	})

	_, err := c.AdminCreateExchange(context.Background(), "tok",
		models.ExchangeForm{Name: "Binance", Slug: "binance"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !httpx.IsCode(err, httpx.CodeValidation) {
		t.Fatalf("unexpected code %s", httpx.CodeOf(err))
	}
	if got := httpx.MessageOf(err, ""); got != "Slug already exists" {
		t.Fatalf("server detail lost, got %q", got)
	}
}

func TestErrorDetailFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("<html>boom</html>"))
	})

	_, err := c.ListExchanges(context.Background(), "tok")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := httpx.MessageOf(err, ""); got != "Request failed" {
		t.Fatalf("expected fallback detail, got %q", got)
	}
	if !httpx.IsCode(err, httpx.CodeUpstream) {
		t.Fatalf("unexpected code %s", httpx.CodeOf(err))
	}
}

func TestUnauthorizedTranslated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
	})

	_, err := c.CurrentUser(context.Background(), "stale")
	if !httpx.IsCode(err, httpx.CodeUnauthorized) {
		t.Fatalf("unexpected code %s", httpx.CodeOf(err))
	}
}

func TestMalformedPayloadFailsClosed(t *testing.T) {
	// Well-formed JSON whose records are missing required fields must be
	// rejected, not rendered partially.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"e1","name":"","slug":"x","created_at":"2025-03-01T00:00:00Z"}]`))
	})

	_, err := c.ListExchanges(context.Background(), "tok")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !httpx.IsCode(err, httpx.CodeUpstream) {
		t.Fatalf("unexpected code %s", httpx.CodeOf(err))
	}
	if got := httpx.MessageOf(err, ""); got != "Malformed response from backend" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInvalidJSONFailsClosed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"truncated":`))
	})

	_, err := c.ListExchanges(context.Background(), "tok")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := httpx.MessageOf(err, ""); got != "Malformed response from backend" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestConsumeMagicLinkRelaysCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "efi_session", Value: "fresh", HttpOnly: true})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"ops@example.com","role":"user"}}`))
	})

	user, cookies, err := c.ConsumeMagicLink(context.Background(), "magic-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "ops@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if len(cookies) != 1 || cookies[0].Name != "efi_session" || cookies[0].Value != "fresh" {
		t.Fatalf("session cookie not relayed: %+v", cookies)
	}
}

func TestConsumeMagicLinkInvalidToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid or expired token"}`))
	})

	_, _, err := c.ConsumeMagicLink(context.Background(), "spent")
	if !httpx.IsCode(err, httpx.CodeTokenInvalid) {
		t.Fatalf("unexpected code %s", httpx.CodeOf(err))
	}
	if got := httpx.MessageOf(err, ""); got != "Invalid or expired token" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestTriggerResyncPath(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	})

	if err := c.AdminTriggerResync(context.Background(), "tok"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/v1/admin/jobs/resync" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
}
