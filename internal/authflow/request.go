// Package authflow drives the passwordless login state machines: the request
// half (ask for a link by email) and the callback half (consume the emailed
// token and establish a session).
package authflow

import (
	"context"

	"flowgate/pkg/httpx"
)

// RequestPhase is the state of the magic-link request half.
type RequestPhase string

const (
	PhaseIdle          RequestPhase = "idle"
	PhaseRequesting    RequestPhase = "requesting"
	PhaseSent          RequestPhase = "sent"
	PhaseRequestFailed RequestPhase = "request_failed"
)

// SentMessage is shown after the backend accepts a link request.
const SentMessage = "Magic link sent! Check your email."

const requestFallbackMessage = "Failed to send magic link"

// MagicLinkSender issues a magic-link email. Implemented by the upstream client.
type MagicLinkSender interface {
	RequestMagicLink(ctx context.Context, email string, marketingOptIn bool) error
}

// RequestFlow is the state machine behind the login form. One instance per
// submission attempt.
type RequestFlow struct {
	sender  MagicLinkSender
	phase   RequestPhase
	message string
}

// NewRequestFlow creates a flow in the idle phase.
func NewRequestFlow(sender MagicLinkSender) *RequestFlow {
	return &RequestFlow{sender: sender, phase: PhaseIdle}
}

// Phase returns the current phase.
func (f *RequestFlow) Phase() RequestPhase {
	return f.phase
}

// Message returns the confirmation or failure text for the current phase.
func (f *RequestFlow) Message() string {
	return f.message
}

// Submit runs idle → requesting → (sent | request_failed). An empty or
// malformed email never leaves idle and never produces a backend call,
// matching the form's native validation. On rejection the server-provided
// message is kept, not replaced with a generic one.
func (f *RequestFlow) Submit(ctx context.Context, email string, marketingOptIn bool) error {
	if f.phase != PhaseIdle {
		return httpx.BadRequestError("magic link already requested")
	}
	if err := httpx.ValidateVar(email, "required,email"); err != nil {
		return httpx.FieldValidationError("email", "Email must be a valid email address").WithError(err)
	}

	f.phase = PhaseRequesting
	if err := f.sender.RequestMagicLink(ctx, email, marketingOptIn); err != nil {
		f.phase = PhaseRequestFailed
		f.message = httpx.MessageOf(err, requestFallbackMessage)
		return err
	}

	f.phase = PhaseSent
	f.message = SentMessage
	return nil
}
