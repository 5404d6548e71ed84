// Package upstream is the typed client for the flow-intelligence backend.
// It owns URL construction, session-cookie forwarding, body serialization,
// and the translation of non-success responses into typed errors. Responses
// are decoded into tagged structs and validated before anyone renders them;
// malformed payloads fail closed.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flowgate/internal/domain/models"
	"flowgate/pkg/httpx"
	applogger "flowgate/pkg/logger"
	"flowgate/pkg/metrics"
)

// Session is the opaque session token carried by the browser cookie. The
// gateway never inspects its contents, it only forwards it.
type Session string

// DefaultCookieName matches the cookie the backend sets on login.
const DefaultCookieName = "efi_session"

const basePath = "/api/v1"

// fallbackDetail is used when an error response carries no parseable detail.
const fallbackDetail = "Request failed"

// Client calls the backend REST API.
type Client struct {
	base       string
	cookieName string
	http       *httpx.Client
	log        *applogger.Logger
	rec        *metrics.Recorder
}

// Option configures Client.
type Option func(*Client)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(c *Client) { c.cookieName = name }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = httpx.NewClient(httpx.WithTimeout(d)) }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Client) { c.rec = rec }
}

// New creates a backend client rooted at baseURL (no trailing slash).
func New(baseURL string, log *applogger.Logger, opts ...Option) *Client {
	c := &Client{
		base:       baseURL,
		cookieName: DefaultCookieName,
		http:       httpx.NewClient(),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CookieName returns the session cookie name this client forwards.
func (c *Client) CookieName() string {
	return c.cookieName
}

// --- Auth ---

type magicLinkRequest struct {
	Email          string `json:"email"`
	MarketingOptIn bool   `json:"marketing_opt_in"`
}

// RequestMagicLink asks the backend to email a single-use login link.
func (c *Client) RequestMagicLink(ctx context.Context, email string, marketingOptIn bool) error {
	_, err := c.call(ctx, "auth.request_link", httpx.MethodPost, "/auth/request-link", "",
		nil, magicLinkRequest{Email: email, MarketingOptIn: marketingOptIn}, nil)
	return err
}

type consumeLinkRequest struct {
	Token string `json:"token"`
}

type consumeLinkResponse struct {
	User models.User `json:"user"`
}

// ConsumeMagicLink exchanges a magic-link token for a session. The backend's
// Set-Cookie headers are returned so the gateway can relay them to the
// browser. A rejected token is terminal; callers never retry.
func (c *Client) ConsumeMagicLink(ctx context.Context, token string) (*models.User, []*http.Cookie, error) {
	var out consumeLinkResponse
	resp, err := c.call(ctx, "auth.consume_link", httpx.MethodPost, "/auth/consume-link", "",
		nil, consumeLinkRequest{Token: token}, &out)
	if err != nil {
		// An unauthorized response here means the token is spent or expired,
		// not that a session is missing.
		if httpx.IsCode(err, httpx.CodeUnauthorized) {
			return nil, nil, httpx.TokenInvalidError(httpx.MessageOf(err, "Invalid or expired token"))
		}
		return nil, nil, err
	}
	if err := models.Validate(&out.User); err != nil {
		return nil, nil, malformed(err)
	}
	return &out.User, resp.Cookies(), nil
}

// Logout clears the session server-side. The backend's cookie-deletion
// headers are returned for relaying.
func (c *Client) Logout(ctx context.Context, sess Session) ([]*http.Cookie, error) {
	resp, err := c.call(ctx, "auth.logout", httpx.MethodPost, "/auth/logout", sess, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Cookies(), nil
}

// CurrentUser resolves the identity behind a session. Resolved fresh on every
// protected page load; the result is never cached.
func (c *Client) CurrentUser(ctx context.Context, sess Session) (*models.User, error) {
	var u models.User
	if _, err := c.call(ctx, "me", httpx.MethodGet, "/me", sess, nil, nil, &u); err != nil {
		return nil, err
	}
	if err := models.Validate(&u); err != nil {
		return nil, malformed(err)
	}
	return &u, nil
}

// --- Analyst surface ---

// ListExchanges returns the exchanges visible to any signed-in user.
func (c *Client) ListExchanges(ctx context.Context, sess Session) ([]models.Exchange, error) {
	var out []models.Exchange
	if _, err := c.call(ctx, "exchanges.list", httpx.MethodGet, "/exchanges", sess, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := models.ValidateAll(out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// FlowQuery narrows an exchange flow series. Zero fields are omitted.
type FlowQuery struct {
	Asset  string
	Window string
	From   time.Time
	To     time.Time
}

func (q FlowQuery) values() url.Values {
	v := url.Values{}
	if q.Asset != "" {
		v.Set("asset", q.Asset)
	}
	if q.Window != "" {
		v.Set("window", q.Window)
	}
	if !q.From.IsZero() {
		v.Set("from", q.From.Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.Format(time.RFC3339))
	}
	return v
}

// ExchangeFlows returns the aggregated flow series for one exchange.
func (c *Client) ExchangeFlows(ctx context.Context, sess Session, exchangeID string, q FlowQuery) ([]models.FlowPoint, error) {
	var out []models.FlowPoint
	path := "/exchanges/" + url.PathEscape(exchangeID) + "/flows"
	if _, err := c.call(ctx, "exchanges.flows", httpx.MethodGet, path, sess, q.values(), nil, &out); err != nil {
		return nil, err
	}
	if err := models.ValidateAll(out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// LiveAlerts returns alerts from the backend's 24h window.
func (c *Client) LiveAlerts(ctx context.Context, sess Session) ([]models.Alert, error) {
	var out []models.Alert
	if _, err := c.call(ctx, "alerts.live", httpx.MethodGet, "/alerts/live", sess, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := models.ValidateAll(out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// --- Admin surface ---

// AdminListExchanges lists exchanges through the admin namespace.
func (c *Client) AdminListExchanges(ctx context.Context, sess Session) ([]models.Exchange, error) {
	var out []models.Exchange
	if _, err := c.call(ctx, "admin.exchanges.list", httpx.MethodGet, "/admin/exchanges", sess, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := models.ValidateAll(out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// AdminCreateExchange creates an exchange. The form is validated locally
// first so a malformed slug never reaches the wire.
func (c *Client) AdminCreateExchange(ctx context.Context, sess Session, form models.ExchangeForm) (*models.Exchange, error) {
	if err := models.Validate(&form); err != nil {
		return nil, httpx.ValidationFailedError("Slug must match [a-z0-9-]+ and name is required").WithError(err)
	}
	var out models.Exchange
	if _, err := c.call(ctx, "admin.exchanges.create", httpx.MethodPost, "/admin/exchanges", sess, nil, form, &out); err != nil {
		return nil, err
	}
	if err := models.Validate(&out); err != nil {
		return nil, malformed(err)
	}
	return &out, nil
}

// AdminUpdateExchange partially updates an exchange.
func (c *Client) AdminUpdateExchange(ctx context.Context, sess Session, id string, patch models.ExchangePatch) (*models.Exchange, error) {
	if err := models.Validate(&patch); err != nil {
		return nil, httpx.ValidationFailedError("Slug must match [a-z0-9-]+").WithError(err)
	}
	var out models.Exchange
	path := "/admin/exchanges/" + url.PathEscape(id)
	if _, err := c.call(ctx, "admin.exchanges.update", httpx.MethodPatch, path, sess, nil, patch, &out); err != nil {
		return nil, err
	}
	if err := models.Validate(&out); err != nil {
		return nil, malformed(err)
	}
	return &out, nil
}

// AdminListAddresses lists labeled addresses, optionally filtered.
func (c *Client) AdminListAddresses(ctx context.Context, sess Session, filter models.AddressFilter) ([]models.Address, error) {
	v := url.Values{}
	if filter.ExchangeID != "" {
		v.Set("exchange_id", filter.ExchangeID)
	}
	if filter.Chain != "" {
		v.Set("chain", string(filter.Chain))
	}
	if filter.IsActive != nil {
		v.Set("is_active", strconv.FormatBool(*filter.IsActive))
	}
	var out []models.Address
	if _, err := c.call(ctx, "admin.addresses.list", httpx.MethodGet, "/admin/addresses", sess, v, nil, &out); err != nil {
		return nil, err
	}
	if err := models.ValidateAll(out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// AdminCreateAddress creates a labeled address.
func (c *Client) AdminCreateAddress(ctx context.Context, sess Session, form models.AddressForm) (*models.Address, error) {
	if err := models.Validate(&form); err != nil {
		return nil, httpx.ValidationFailedError("Address form is incomplete").WithError(err)
	}
	var out models.Address
	if _, err := c.call(ctx, "admin.addresses.create", httpx.MethodPost, "/admin/addresses", sess, nil, form, &out); err != nil {
		return nil, err
	}
	if err := models.Validate(&out); err != nil {
		return nil, malformed(err)
	}
	return &out, nil
}

// AdminUpdateAddress partially updates a labeled address.
func (c *Client) AdminUpdateAddress(ctx context.Context, sess Session, id string, patch models.AddressPatch) (*models.Address, error) {
	if err := models.Validate(&patch); err != nil {
		return nil, httpx.ValidationFailedError("Address patch is invalid").WithError(err)
	}
	var out models.Address
	path := "/admin/addresses/" + url.PathEscape(id)
	if _, err := c.call(ctx, "admin.addresses.update", httpx.MethodPatch, path, sess, nil, patch, &out); err != nil {
		return nil, err
	}
	if err := models.Validate(&out); err != nil {
		return nil, malformed(err)
	}
	return &out, nil
}

// AdminSyncState returns the ingestion cursor for every chain.
func (c *Client) AdminSyncState(ctx context.Context, sess Session) ([]models.SyncState, error) {
	var out []models.SyncState
	if _, err := c.call(ctx, "admin.sync_state", httpx.MethodGet, "/admin/sync-state", sess, nil, nil, &out); err != nil {
		return nil, err
	}
	if err := models.ValidateAll(out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// AdminTriggerResync enqueues backend re-ingestion jobs. The job is
// asynchronous; success means "enqueued", never "done".
func (c *Client) AdminTriggerResync(ctx context.Context, sess Session) error {
	_, err := c.call(ctx, "admin.resync", httpx.MethodPost, "/admin/jobs/resync", sess, nil, nil, nil)
	return err
}

// --- plumbing ---

// call performs one backend request. On 2xx it decodes the body into dest
// (when non-nil) and returns the response for header access. Any other
// status is translated into a typed error carrying the server's detail text.
func (c *Client) call(ctx context.Context, op, method, path string, sess Session, query url.Values, body, dest interface{}) (*http.Response, error) {
	opts := &httpx.RequestOptions{
		Method:      method,
		URL:         c.base + basePath + path,
		QueryParams: query,
		Body:        body,
	}
	if sess != "" {
		opts.Cookies = []*http.Cookie{{Name: c.cookieName, Value: string(sess)}}
	}

	start := time.Now()
	resp, err := c.http.SendRequest(ctx, opts)
	if err != nil {
		c.rec.RecordUpstreamRequest(op, "transport_error", time.Since(start))
		return nil, httpx.UpstreamError(fallbackDetail).WithError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := c.translate(resp)
		c.rec.RecordUpstreamRequest(op, httpx.CodeOf(terr), time.Since(start))
		return nil, terr
	}
	c.rec.RecordUpstreamRequest(op, "success", time.Since(start))

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, malformed(err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp, nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) translate(resp *http.Response) error {
	detail := fallbackDetail
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(raw) > 0 {
		var eb errorBody
		if jsonErr := json.Unmarshal(raw, &eb); jsonErr == nil && eb.Detail != "" {
			detail = eb.Detail
		}
	}

	c.log.Debug("upstream error response",
		applogger.Int("status", resp.StatusCode),
		applogger.String("detail", detail),
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return httpx.UnauthorizedError(detail)
	case http.StatusForbidden:
		return httpx.ForbiddenError(detail)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return httpx.ValidationFailedError(detail)
	case http.StatusNotFound:
		return httpx.NotFoundError(detail)
	case http.StatusTooManyRequests:
		return httpx.RateLimitedError(detail)
	default:
		return httpx.UpstreamError(detail)
	}
}

func malformed(err error) error {
	return httpx.UpstreamError("Malformed response from backend").WithError(fmt.Errorf("decode upstream response: %w", err))
}
