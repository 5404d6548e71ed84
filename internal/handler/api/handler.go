package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"flowgate/internal/alerts"
	"flowgate/internal/audit"
	"flowgate/internal/console"
	"flowgate/internal/guard"
	"flowgate/internal/ratelimit"
	"flowgate/internal/upstream"
	applogger "flowgate/pkg/logger"
	"flowgate/pkg/metrics"
)

// GatewayHandler owns the full route surface of the gateway: the public
// auth endpoints, the session-guarded dashboard views and the admin console.
type GatewayHandler struct {
	upstream *upstream.Client
	guard    *guard.Guard
	consoles *console.Registry
	limiter  ratelimit.Limiter
	audit    audit.Publisher
	streamer *alerts.Streamer
	l        *applogger.Logger
	rec      *metrics.Recorder

	redirectDelay time.Duration
}

type HandlerOption func(*GatewayHandler)

func WithRedirectDelay(d time.Duration) HandlerOption {
	return func(h *GatewayHandler) { h.redirectDelay = d }
}

func WithRateLimiter(l ratelimit.Limiter) HandlerOption {
	return func(h *GatewayHandler) { h.limiter = l }
}

func WithAudit(p audit.Publisher) HandlerOption {
	return func(h *GatewayHandler) { h.audit = p }
}

func WithAlertStreamer(s *alerts.Streamer) HandlerOption {
	return func(h *GatewayHandler) { h.streamer = s }
}

func WithMetrics(rec *metrics.Recorder) HandlerOption {
	return func(h *GatewayHandler) { h.rec = rec }
}

func NewGatewayHandler(
	up *upstream.Client,
	g *guard.Guard,
	consoles *console.Registry,
	l *applogger.Logger,
	opts ...HandlerOption,
) *GatewayHandler {
	h := &GatewayHandler{
		upstream: up,
		guard:    g,
		consoles: consoles,
		audit:    audit.NopPublisher{},
		l:        l,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes attaches the gateway surface to the echo instance. The
// session gate itself runs as server-level middleware; here only the
// identity-resolving guards are attached per group.
func (h *GatewayHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/login", h.LoginPage)
	e.POST("/login/request", h.RequestMagicLink)
	e.GET("/auth/callback", h.AuthCallback)
	e.POST("/auth/logout", h.Logout)

	e.GET("/", h.Home, h.guard.RequireUser())
	e.GET("/dashboard", h.Dashboard, h.guard.RequireUser())
	e.GET("/exchanges/:id/flows", h.ExchangeFlows, h.guard.RequireUser())
	if h.streamer != nil {
		e.GET("/ws/alerts", h.streamer.Handle, h.guard.RequireUser())
	}

	admin := e.Group("/admin", h.guard.RequireAdmin())
	admin.GET("/console", h.Console)
	admin.POST("/console/tab", h.ConsoleSelectTab)
	admin.POST("/console/exchanges", h.ConsoleCreateExchange)
	admin.POST("/console/addresses", h.ConsoleCreateAddress)
	admin.POST("/console/resync", h.ConsoleResync)
	admin.PATCH("/exchanges/:id", h.UpdateExchange)
	admin.PATCH("/addresses/:id", h.UpdateAddress)
}

// controller resolves the calling admin's console controller. Guard
// middleware has already stored the user and session on the context.
func (h *GatewayHandler) controller(c echo.Context) *console.Controller {
	user := guard.UserFrom(c)
	sess := guard.SessionFrom(c)
	return h.consoles.Acquire(c.Request().Context(), user.ID, sess)
}
