package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"flowgate/internal/authflow"
	"flowgate/internal/guard"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
)

type magicLinkRequest struct {
	Email          string `json:"email" form:"email" validate:"required,email"`
	MarketingOptIn bool   `json:"marketing_opt_in" form:"marketing_opt_in"`
}

type magicLinkResponse struct {
	Phase   authflow.RequestPhase `json:"phase"`
	Message string                `json:"message"`
}

type callbackResponse struct {
	Status          authflow.CallbackStatus `json:"status"`
	Message         string                  `json:"message"`
	RedirectTo      string                  `json:"redirect_to,omitempty"`
	RedirectAfterMS int64                   `json:"redirect_after_ms,omitempty"`
	LoginURL        string                  `json:"login_url,omitempty"`
}

// LoginPage renders the login surface for unauthenticated clients. The
// session gate sends every guarded path here.
func (h *GatewayHandler) LoginPage(c echo.Context) error {
	return httpx.SuccessResponse(c, map[string]string{
		"title":  "Sign in",
		"prompt": "Enter your email to receive a magic link",
	})
}

// RequestMagicLink asks the backend to email a login link. The email is
// validated and rate limited before any upstream call.
func (h *GatewayHandler) RequestMagicLink(c echo.Context) error {
	req := new(magicLinkRequest)
	if verr := httpx.ReadAndValidateRequest(c, req); verr != nil {
		return httpx.BadRequestResponse(c, verr)
	}

	key := strings.ToLower(strings.TrimSpace(req.Email))
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.Request().Context(), key)
		if err != nil {
			// Limiter backend trouble must not lock users out of login.
			h.l.Warn("auth.request limiter_error", applogger.Error(err))
		} else if !allowed {
			h.rec.RecordMagicLinkRequest("rate_limited")
			return httpx.AppErrorResponse(c, httpx.RateLimitedError("Too many magic link requests, try again later"))
		}
	}

	flow := authflow.NewRequestFlow(h.upstream)
	if err := flow.Submit(c.Request().Context(), req.Email, req.MarketingOptIn); err != nil {
		h.rec.RecordMagicLinkRequest("failed")
		h.l.Warn("auth.request send_failed", applogger.String("email", key), applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}

	h.rec.RecordMagicLinkRequest("sent")
	return httpx.SuccessResponse(c, magicLinkResponse{
		Phase:   flow.Phase(),
		Message: flow.Message(),
	})
}

// AuthCallback consumes the magic-link token from the query string. On
// success the backend's session cookies are relayed to the client and the
// response announces the delayed navigation to the dashboard.
func (h *GatewayHandler) AuthCallback(c echo.Context) error {
	flow := authflow.NewCallbackFlow(h.upstream, h.redirectDelay)
	res := flow.Consume(c.Request().Context(), c.QueryParam("token"))

	if res.Status != authflow.StatusSuccess {
		status := echo.ErrUnauthorized.Code
		if res.Message == authflow.NoTokenMessage {
			status = echo.ErrBadRequest.Code
		}
		return httpx.DataResponse(c, status, callbackResponse{
			Status:   res.Status,
			Message:  res.Message,
			LoginURL: "/login",
		})
	}

	for _, ck := range res.Cookies {
		c.SetCookie(ck)
	}
	c.Response().Header().Set("Refresh", refreshHeader(res.RedirectAfter, res.RedirectTo))
	return httpx.SuccessResponse(c, callbackResponse{
		Status:          res.Status,
		Message:         res.Message,
		RedirectTo:      res.RedirectTo,
		RedirectAfterMS: res.RedirectAfter.Milliseconds(),
	})
}

// refreshHeader formats the HTTP Refresh header that carries the delayed
// navigation, "1;url=/dashboard" for the default delay.
func refreshHeader(after time.Duration, target string) string {
	secs := int(after.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d;url=%s", secs, target)
}

// Logout tears down the backend session and relays the cookie deletion.
func (h *GatewayHandler) Logout(c echo.Context) error {
	cookies, err := h.upstream.Logout(c.Request().Context(), guard.SessionFrom(c))
	if err != nil {
		h.l.Warn("auth.logout failed", applogger.Error(err))
		return httpx.AppErrorResponse(c, err)
	}
	for _, ck := range cookies {
		c.SetCookie(ck)
	}
	return httpx.SuccessResponse(c, map[string]string{
		"message":   "Logged out",
		"login_url": "/login",
	})
}
