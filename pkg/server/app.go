package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"flowgate/internal/guard"
	"flowgate/pkg/config"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
)

// App encapsulates the gateway lifecycle: one HTTP server carrying the whole
// route surface behind the session gate, plus the side clients that need
// closing on the way down.
type App struct {
	cfg     *config.Config
	l       *applogger.Logger
	handler httpx.Handler
	guard   *guard.Guard

	httpServer *httpx.Server
	redis      *redis.Client
	auditSink  io.Closer
}

// New creates an App. The redis client and audit sink are optional.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler httpx.Handler,
	g *guard.Guard,
) *App {
	return &App{cfg: cfg, l: l, handler: handler, guard: g}
}

// SetRedis hands the app a redis client to close on shutdown.
func (a *App) SetRedis(client *redis.Client) { a.redis = client }

// SetAuditSink hands the app the audit producer to close on shutdown.
func (a *App) SetAuditSink(c io.Closer) { a.auditSink = c }

// Run starts the HTTP server and blocks until interrupted.
func (a *App) Run() error {
	a.httpServer = httpx.NewServer(a.l, a.handler,
		httpx.WithHost(a.cfg.Server.Host),
		httpx.WithPort(a.cfg.Server.Port),
		httpx.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		httpx.WithMiddleware(a.guard.SessionGate()),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("gateway started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("upstream", a.cfg.Upstream.BaseURL),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(context.Background())
}

// shutdown stops the HTTP server first, then closes the side clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.auditSink != nil {
		if err := a.auditSink.Close(); err != nil {
			a.l.Warn("audit producer close error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
