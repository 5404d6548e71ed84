package console

import (
	"context"
	"sync"
	"time"

	"flowgate/internal/upstream"
	applogger "flowgate/pkg/logger"
	"flowgate/pkg/metrics"
)

// Registry hands out one controller per admin user. Consoles idle past the
// TTL are dropped on the next acquisition; their next visit starts fresh.
type Registry struct {
	api AdminAPI
	log *applogger.Logger
	rec *metrics.Recorder
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// NewRegistry creates a registry. A non-positive TTL disables eviction.
func NewRegistry(api AdminAPI, log *applogger.Logger, ttl time.Duration, rec *metrics.Recorder) *Registry {
	return &Registry{
		api:     api,
		log:     log,
		rec:     rec,
		ttl:     ttl,
		entries: make(map[string]*registryEntry),
	}
}

// Acquire returns the controller for userID, creating and starting it on
// first use. The session token is refreshed on every acquisition since the
// backend may have rotated it.
func (r *Registry) Acquire(ctx context.Context, userID string, sess upstream.Session) *Controller {
	now := time.Now()

	r.mu.Lock()
	r.sweepLocked(now)
	e, ok := r.entries[userID]
	if !ok {
		e = &registryEntry{
			ctrl: NewController(r.api, sess, r.log, WithMetrics(r.rec)),
		}
		r.entries[userID] = e
	}
	e.lastSeen = now
	ctrl := e.ctrl
	r.mu.Unlock()

	ctrl.UpdateSession(sess)
	ctrl.Start(ctx)
	return ctrl
}

func (r *Registry) sweepLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.entries, id)
		}
	}
}
