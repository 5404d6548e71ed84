package di

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"flowgate/internal/alerts"
	"flowgate/internal/audit"
	"flowgate/internal/console"
	"flowgate/internal/guard"
	"flowgate/internal/handler/api"
	"flowgate/internal/ratelimit"
	"flowgate/internal/upstream"
	"flowgate/pkg/config"
	"flowgate/pkg/httpx"
	pkgkafka "flowgate/pkg/kafka"
	applogger "flowgate/pkg/logger"
	"flowgate/pkg/metrics"
	"flowgate/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideUpstream creates the typed backend client.
func ProvideUpstream(cfg *config.Config, l *applogger.Logger, rec *metrics.Recorder) *upstream.Client {
	return upstream.New(cfg.Upstream.BaseURL, l,
		upstream.WithCookieName(cfg.Session.CookieName),
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithMetrics(rec),
	)
}

// ProvideGuard creates the session gate and role guards. Identity resolves
// through the backend on every guarded request.
func ProvideGuard(cfg *config.Config, up *upstream.Client, l *applogger.Logger) *guard.Guard {
	return guard.New(cfg.Session.CookieName, up, l)
}

// ProvideConsoleRegistry creates the per-admin console controller registry.
func ProvideConsoleRegistry(cfg *config.Config, up *upstream.Client, l *applogger.Logger, rec *metrics.Recorder) *console.Registry {
	return console.NewRegistry(up, l, cfg.Console.IdleTTL, rec)
}

// ProvideRedis creates a redis client, or nil when redis is disabled.
func ProvideRedis(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideRateLimiter creates the magic-link rate limiter. Redis backs it when
// available so limits survive restarts and hold across replicas; otherwise an
// in-process bucket limiter serves. Nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config, client *redis.Client) ratelimit.Limiter {
	rl := cfg.Auth.RateLimit
	if !rl.Enabled {
		return nil
	}
	if client != nil {
		return ratelimit.NewRedisLimiter(client, rl.PerEmail, rl.Window)
	}
	return ratelimit.NewMemoryLimiter(rl.PerEmail, rl.Window)
}

// ProvideKafkaProducer creates the audit producer, or nil when auditing is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Audit.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Audit.Brokers),
		pkgkafka.WithCompression(cfg.Audit.Compression),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditPublisher creates the admin audit publisher.
func ProvideAuditPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) audit.Publisher {
	if producer == nil {
		return audit.NopPublisher{}
	}
	return audit.NewKafkaPublisher(producer, cfg.Audit.Topic, l)
}

// ProvideAlertStreamer creates the WebSocket alert streamer.
func ProvideAlertStreamer(cfg *config.Config, up *upstream.Client, l *applogger.Logger) *alerts.Streamer {
	return alerts.NewStreamer(up, cfg.Alerts.PollInterval, l)
}

// ProvideHandler assembles the gateway route surface.
func ProvideHandler(
	cfg *config.Config,
	up *upstream.Client,
	g *guard.Guard,
	consoles *console.Registry,
	limiter ratelimit.Limiter,
	auditPub audit.Publisher,
	streamer *alerts.Streamer,
	l *applogger.Logger,
	rec *metrics.Recorder,
) httpx.Handler {
	return api.NewGatewayHandler(up, g, consoles, l,
		api.WithRedirectDelay(cfg.Auth.RedirectDelay),
		api.WithRateLimiter(limiter),
		api.WithAudit(auditPub),
		api.WithAlertStreamer(streamer),
		api.WithMetrics(rec),
	)
}

// ProvideApp creates the application and registers the side clients it must
// close on shutdown.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler httpx.Handler,
	g *guard.Guard,
	redisClient *redis.Client,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, l, handler, g)
	if redisClient != nil {
		app.SetRedis(redisClient)
	}
	if producer != nil {
		app.SetAuditSink(producer)
	}
	return app
}
