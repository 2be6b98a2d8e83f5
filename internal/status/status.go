package status

import "errors"

// Not-found conditions. For inbound provider events ErrPaymentNotFound is
// treated as expected, not as a failure (see handlers/webhook_handler.go).
var (
	ErrRegistrationNotFound = errors.New("registration: registration not found")
	ErrGuestNotFound        = errors.New("guest: guest not found")
	ErrPaymentNotFound      = errors.New("payment: payment not found")
	ErrEventNotFound        = errors.New("event: event not found")
)

// Token validity conditions. Terminal per scan, never retried.
var (
	ErrInvalidToken  = errors.New("ticket: invalid token")
	ErrTokenExpired  = errors.New("ticket: token expired")
	ErrTokenMismatch = errors.New("ticket: token mismatch")
)

// ErrAlreadyCheckedIn is a state conflict requiring an explicit operator
// decision (override) to resolve.
var ErrAlreadyCheckedIn = errors.New("checkin: already checked in")
