package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
upstream:
  base_url: http://backend:8000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Session.CookieName != "efi_session" {
		t.Fatalf("unexpected cookie name %q", cfg.Session.CookieName)
	}
	if cfg.Auth.RedirectDelay != time.Second {
		t.Fatalf("unexpected redirect delay %v", cfg.Auth.RedirectDelay)
	}
	if cfg.Auth.RateLimit.PerEmail != 5 || cfg.Auth.RateLimit.Window != 15*time.Minute {
		t.Fatalf("unexpected rate limit defaults %+v", cfg.Auth.RateLimit)
	}
	if cfg.Console.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected idle ttl %v", cfg.Console.IdleTTL)
	}
}

func TestLoadRejectsMissingUpstream(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsTrailingSlash(t *testing.T) {
	path := writeConfig(t, `
environment: test
upstream:
  base_url: http://backend:8000/
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: test
upstream:
  base_url: http://backend:8000
`)
	t.Setenv("UPSTREAM_BASE_URL", "http://other:9000")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_COOKIE", "alt_session")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://other:9000" {
		t.Fatalf("env override not applied: %q", cfg.Upstream.BaseURL)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("env override not applied: %d", cfg.Server.Port)
	}
	if cfg.Session.CookieName != "alt_session" {
		t.Fatalf("env override not applied: %q", cfg.Session.CookieName)
	}
}
