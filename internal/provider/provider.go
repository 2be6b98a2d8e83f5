// Package provider handles the payment provider's asynchronous notifications:
// event envelopes, signature verification and the error triage that decides
// how the webhook responds.
package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout.session.completed"
	EventCheckoutExpired       EventType = "checkout.session.expired"
	EventAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    EventType = "checkout.session.async_payment_failed"
	EventPaymentIntentFailed   EventType = "payment_intent.payment_failed"
)

// Event is one provider notification. Each delivery is independently
// verifiable via its HMAC signature; duplicates are expected and must be safe.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	SessionRef    string          `json:"session_ref"`
	IntentRef     string          `json:"intent_ref,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
}

func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse provider event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("parse provider event: missing type")
	}
	return &ev, nil
}

// Sign computes the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the provider signature in constant time.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
