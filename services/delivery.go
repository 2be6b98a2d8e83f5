package services

import (
	"context"
	"log/slog"
	"time"

	"guestpass/models"
	"guestpass/utils"
)

// Delivery is the rendered ticket artifact plus the contact identity it goes
// to. Outbound transport (email) lives outside this core.
type Delivery struct {
	Guest models.Guest
	Token string
	QRPNG []byte
}

// Deliverer hands an issued ticket off for outbound delivery.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// GuardedDeliverer wraps a Deliverer with a timeout and a circuit breaker so
// a struggling mail gateway cannot pile up request-scoped goroutines. Always
// called after the owning transaction has committed.
type GuardedDeliverer struct {
	inner   Deliverer
	breaker *utils.CircuitBreaker
	timeout time.Duration
}

func NewGuardedDeliverer(inner Deliverer, timeout time.Duration) *GuardedDeliverer {
	return &GuardedDeliverer{
		inner:   inner,
		breaker: utils.NewCircuitBreaker("ticket-delivery"),
		timeout: timeout,
	}
}

func (g *GuardedDeliverer) Deliver(ctx context.Context, d Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return g.breaker.Execute(func() error {
		return g.inner.Deliver(ctx, d)
	})
}

// LogDeliverer is the development stand-in for the real mail integration.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(_ context.Context, d Delivery) error {
	slog.Info("ticket ready for delivery", "guest", d.Guest.ID, "email", d.Guest.Email)
	return nil
}
