package api

import (
	"github.com/labstack/echo/v4"

	"flowgate/internal/domain/models"
	"flowgate/internal/guard"
	"flowgate/internal/upstream"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
	"flowgate/pkg/util"
)

type dashboardView struct {
	User      *models.User      `json:"user"`
	Exchanges []models.Exchange `json:"exchanges"`
	Alerts    []models.Alert    `json:"alerts"`
}

// Home sends authenticated users to their landing page.
func (h *GatewayHandler) Home(c echo.Context) error {
	return httpx.Redirect(c, "/dashboard")
}

// Dashboard assembles the monitoring landing view. Any upstream failure,
// identity included, drops the client back to /login rather than rendering
// a partial page.
func (h *GatewayHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	user := guard.UserFrom(c)
	sess := guard.SessionFrom(c)

	exchanges, err := h.upstream.ListExchanges(ctx, sess)
	if err != nil {
		h.l.Warn("dashboard.exchanges failed", applogger.Error(err))
		return httpx.Redirect(c, "/login")
	}
	liveAlerts, err := h.upstream.LiveAlerts(ctx, sess)
	if err != nil {
		h.l.Warn("dashboard.alerts failed", applogger.Error(err))
		return httpx.Redirect(c, "/login")
	}

	return httpx.SuccessResponse(c, dashboardView{
		User:      user,
		Exchanges: exchanges,
		Alerts:    liveAlerts,
	})
}

// ExchangeFlows proxies the aggregated flow series for one exchange.
// Unparseable time bounds are dropped rather than rejected.
func (h *GatewayHandler) ExchangeFlows(c echo.Context) error {
	q := upstream.FlowQuery{
		Asset:  c.QueryParam("asset"),
		Window: c.QueryParam("window"),
	}
	if t, ok := util.ParseTime(c.QueryParam("from")); ok {
		q.From = t
	}
	if t, ok := util.ParseTime(c.QueryParam("to")); ok {
		q.To = t
	}

	points, err := h.upstream.ExchangeFlows(c.Request().Context(), guard.SessionFrom(c), c.Param("id"), q)
	if err != nil {
		h.l.Warn("flows.fetch failed", applogger.String("exchange_id", c.Param("id")), applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}
	return httpx.SuccessResponse(c, points)
}
