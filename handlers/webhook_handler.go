package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"guestpass/internal/provider"
	"guestpass/models"
	"guestpass/monitoring"
	"guestpass/services"
)

// PaymentConfirmer is the slice of the payment service the webhook needs.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, sessionRef, chargeRef string) (*models.Payment, error)
	Cancel(ctx context.Context, sessionRef string) error
}

type WebhookHandler struct {
	confirmer PaymentConfirmer
	limiter   *services.RateLimiter
	secret    string
	intakeKey string
	triage    []provider.TriageRule

	maxAttempts int
	window      time.Duration
}

func NewWebhookHandler(confirmer PaymentConfirmer, limiter *services.RateLimiter, secret string, maxAttempts int, window time.Duration) *WebhookHandler {
	// Intake is limited per provider identity, so a second integration with
	// its own secret gets its own window.
	sum := sha256.Sum256([]byte(secret))
	return &WebhookHandler{
		confirmer:   confirmer,
		limiter:     limiter,
		secret:      secret,
		intakeKey:   "webhook:" + hex.EncodeToString(sum[:4]),
		triage:      provider.DefaultTriage,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Handle receives one provider event. It always responds: 200 acknowledges
// (including unknown errors, which are flagged instead of retried forever),
// 503 asks the provider to redeliver.
func (h *WebhookHandler) Handle(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	if h.limiter != nil {
		decision, err := h.limiter.Check(ctx, h.intakeKey, h.maxAttempts, h.window)
		if err != nil {
			// The limiter's store is down; this is the transient class.
			return e.JSON(http.StatusServiceUnavailable, map[string]any{"error": "temporarily unavailable"})
		}
		if !decision.Allowed {
			return e.JSON(http.StatusServiceUnavailable, map[string]any{"error": "rate limited, retry later"})
		}
	}

	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "unreadable body"})
	}

	signature := e.Request.Header.Get("X-Webhook-Signature")
	if !provider.VerifySignature(body, signature, h.secret) {
		slog.Warn("webhook signature rejected", "remote", e.Request.RemoteAddr)
		return e.JSON(http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
	}

	ev, err := provider.ParseEvent(body)
	if err != nil {
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "malformed event"})
	}

	dispatchErr := h.Dispatch(ctx, ev)

	switch provider.Classify(dispatchErr, h.triage) {
	case provider.ClassAck:
		return e.JSON(http.StatusOK, map[string]any{"received": true})

	case provider.ClassRetry:
		slog.Warn("webhook event deferred for redelivery",
			"event_id", ev.ID, "type", ev.Type, "error", dispatchErr)
		return e.JSON(http.StatusServiceUnavailable, map[string]any{"error": "transient failure, retry"})

	default: // ClassInvestigate
		slog.Error("webhook event acknowledged with unknown error",
			"event_id", ev.ID, "type", ev.Type, "error", dispatchErr)
		monitoring.TrackWebhookInvestigate()
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}
}

// Dispatch routes a verified event to the payment service. Unrecognized event
// types are acknowledged untouched.
func (h *WebhookHandler) Dispatch(ctx context.Context, ev *provider.Event) error {
	switch ev.Type {
	case provider.EventCheckoutCompleted:
		// A completed session with an unpaid status means an async method is
		// still settling; the success arrives as a separate event.
		if ev.Data.PaymentStatus == "unpaid" {
			return nil
		}
		_, err := h.confirmer.Confirm(ctx, ev.Data.SessionRef, ev.Data.IntentRef)
		return err

	case provider.EventAsyncPaymentSucceeded:
		_, err := h.confirmer.Confirm(ctx, ev.Data.SessionRef, ev.Data.IntentRef)
		return err

	case provider.EventCheckoutExpired,
		provider.EventAsyncPaymentFailed,
		provider.EventPaymentIntentFailed:
		return h.confirmer.Cancel(ctx, ev.Data.SessionRef)

	default:
		slog.Info("ignoring unhandled provider event type", "type", ev.Type)
		return nil
	}
}
