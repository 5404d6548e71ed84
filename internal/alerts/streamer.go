// Package alerts pushes live alert snapshots to connected consoles over
// WebSocket. The gateway polls the backend's 24h alert window on an interval
// and writes each snapshot to the socket; the browser never talks to the
// backend directly.
package alerts

import (
	"context"
	"net/http"
	"time"

	"flowgate/internal/domain/models"
	"flowgate/internal/guard"
	"flowgate/internal/upstream"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// AlertsAPI is the backend slice the streamer needs.
type AlertsAPI interface {
	LiveAlerts(ctx context.Context, sess upstream.Session) ([]models.Alert, error)
}

// Snapshot is one WebSocket frame.
type Snapshot struct {
	Alerts []models.Alert `json:"alerts"`
	At     time.Time      `json:"at"`
}

// Streamer upgrades console connections and feeds them alert snapshots.
type Streamer struct {
	api      AlertsAPI
	interval time.Duration
	log      *applogger.Logger
	upgrader websocket.Upgrader
}

// NewStreamer creates a streamer polling upstream every interval.
func NewStreamer(api AlertsAPI, interval time.Duration, log *applogger.Logger) *Streamer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Streamer{
		api:      api,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The session gate already ran; cross-origin upgrades carry the
			// cookie or they fail identity resolution upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle serves one WebSocket connection. The connection closes when the
// client goes away or the session stops resolving.
func (s *Streamer) Handle(c echo.Context) error {
	sess := guard.SessionFrom(c)

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return httpx.BadRequestResponse(c, "websocket upgrade failed")
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Read pump: we expect no client frames, but reading is how close and
	// ping/pong surface.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		alerts, err := s.api.LiveAlerts(ctx, sess)
		switch {
		case err == nil:
			frame := Snapshot{Alerts: alerts, At: time.Now().UTC()}
			if werr := ws.WriteJSON(frame); werr != nil {
				return nil
			}
		case httpx.IsCode(err, httpx.CodeUnauthorized):
			// Session expired mid-stream; drop the connection so the client
			// falls back through the route guard.
			s.log.Debug("alert stream session expired")
			return nil
		default:
			// Transient fetch failure: keep the connection, skip the frame.
			s.log.Warn("alert poll failed", applogger.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
