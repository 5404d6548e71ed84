package authflow

import (
	"context"
	"net/http"
	"time"

	"flowgate/internal/domain/models"
	"flowgate/pkg/httpx"
)

// CallbackStatus is the state of the token-consumption half.
type CallbackStatus string

const (
	StatusLoading CallbackStatus = "loading"
	StatusSuccess CallbackStatus = "success"
	StatusError   CallbackStatus = "error"
)

const (
	// NoTokenMessage is shown when the callback URL carries no token. The
	// flow errors out immediately, without any network call.
	NoTokenMessage = "No token provided"

	// TokenFallbackMessage replaces an empty server message on consumption
	// failure.
	TokenFallbackMessage = "Invalid or expired token"

	// SuccessMessage confirms the established session.
	SuccessMessage = "Login successful!"

	// DashboardPath is where a successful login lands.
	DashboardPath = "/dashboard"

	// DefaultRedirectDelay gives the user visible confirmation before the
	// navigation to the dashboard.
	DefaultRedirectDelay = time.Second
)

// MagicLinkConsumer consumes a magic-link token. Implemented by the upstream
// client.
type MagicLinkConsumer interface {
	ConsumeMagicLink(ctx context.Context, token string) (*models.User, []*http.Cookie, error)
}

// CallbackResult is the terminal state of one callback navigation.
type CallbackResult struct {
	Status        CallbackStatus
	Message       string
	User          *models.User
	Cookies       []*http.Cookie
	RedirectTo    string
	RedirectAfter time.Duration
}

// CallbackFlow consumes magic-link tokens. Tokens are single-use by backend
// contract, so a failure is terminal: the flow never retries, it only offers
// the manual way back to /login.
type CallbackFlow struct {
	consumer MagicLinkConsumer
	delay    time.Duration
}

// NewCallbackFlow creates a callback flow with the given redirect delay.
// A non-positive delay falls back to the default.
func NewCallbackFlow(consumer MagicLinkConsumer, delay time.Duration) *CallbackFlow {
	if delay <= 0 {
		delay = DefaultRedirectDelay
	}
	return &CallbackFlow{consumer: consumer, delay: delay}
}

// Consume runs loading → (success | error) for the token extracted from the
// callback URL. An absent token short-circuits to error with no network call.
func (f *CallbackFlow) Consume(ctx context.Context, token string) CallbackResult {
	if token == "" {
		return CallbackResult{Status: StatusError, Message: NoTokenMessage}
	}

	user, cookies, err := f.consumer.ConsumeMagicLink(ctx, token)
	if err != nil {
		return CallbackResult{
			Status:  StatusError,
			Message: httpx.MessageOf(err, TokenFallbackMessage),
		}
	}

	return CallbackResult{
		Status:        StatusSuccess,
		Message:       SuccessMessage,
		User:          user,
		Cookies:       cookies,
		RedirectTo:    DashboardPath,
		RedirectAfter: f.delay,
	}
}
