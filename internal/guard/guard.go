// Package guard protects every navigation with a two-layer gate: a cheap
// cookie-presence check that needs no network, followed by an authoritative
// identity (and optionally role) resolution against the backend. Neither
// layer trusts the other; cookie presence alone never authorizes anything.
package guard

import (
	"context"
	"strings"

	"flowgate/internal/domain/models"
	"flowgate/internal/upstream"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"

	userContextKey    = "guard.user"
	sessionContextKey = "guard.session"
)

// UserResolver resolves a session into an identity. Implemented by the
// upstream client.
type UserResolver interface {
	CurrentUser(ctx context.Context, sess upstream.Session) (*models.User, error)
}

// Guard holds the route-protection configuration.
type Guard struct {
	cookieName string
	resolver   UserResolver
	log        *applogger.Logger
}

// New creates a Guard forwarding the named session cookie.
func New(cookieName string, resolver UserResolver, log *applogger.Logger) *Guard {
	if cookieName == "" {
		cookieName = upstream.DefaultCookieName
	}
	return &Guard{cookieName: cookieName, resolver: resolver, log: log}
}

// isPublic reports whether a path is reachable without a session. Mirrors
// the public set {/login, /auth/*} plus internal asset and operational paths.
func isPublic(path string) bool {
	switch path {
	case loginPath, "/metrics", "/healthz", "/favicon.ico":
		return true
	}
	return strings.HasPrefix(path, loginPath+"/") ||
		strings.HasPrefix(path, "/auth/") ||
		strings.HasPrefix(path, "/assets/")
}

// SessionGate is the coarse layer: for every non-public path, the absence of
// the session cookie redirects to /login. The requested path is discarded, no
// return-URL is preserved. Presence only lets the navigation proceed; pages
// needing identity still resolve the user themselves.
func (g *Guard) SessionGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if isPublic(path) {
				return next(c)
			}

			ck, err := c.Cookie(g.cookieName)
			if err != nil || ck.Value == "" {
				return httpx.Redirect(c, loginPath)
			}

			c.Set(sessionContextKey, upstream.Session(ck.Value))
			return next(c)
		}
	}
}

// RequireUser is the authoritative layer: it resolves the current user from
// the backend on every request. Resolution failure of any kind redirects to
// /login, matching what the pages do when a session turns out to be invalid.
func (g *Guard) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := SessionFrom(c)
			if sess == "" {
				return httpx.Redirect(c, loginPath)
			}

			user, err := g.resolver.CurrentUser(c.Request().Context(), sess)
			if err != nil {
				g.log.Debug("identity resolution failed", applogger.Error(err))
				return httpx.Redirect(c, loginPath)
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// RequireAdmin layers the role check on top of RequireUser: a resolved
// non-admin is sent to /dashboard, not /login.
func (g *Guard) RequireAdmin() echo.MiddlewareFunc {
	requireUser := g.RequireUser()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return requireUser(func(c echo.Context) error {
			user := UserFrom(c)
			if user == nil || !user.IsAdmin() {
				return httpx.Redirect(c, dashboardPath)
			}
			return next(c)
		})
	}
}

// UserFrom returns the resolved user, or nil outside RequireUser.
func UserFrom(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}

// SessionFrom returns the session token the gate extracted, or "".
func SessionFrom(c echo.Context) upstream.Session {
	if s, ok := c.Get(sessionContextKey).(upstream.Session); ok {
		return s
	}
	return ""
}
