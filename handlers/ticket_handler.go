package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"guestpass/internal/status"
	"guestpass/models"
	"guestpass/services"
)

// GuestLookup resolves a registration's guest for re-delivery.
type GuestLookup interface {
	FindRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindGuest(ctx context.Context, id string) (*models.Guest, error)
}

type TicketHandler struct {
	tickets   *services.TicketService
	guests    GuestLookup
	deliverer services.Deliverer
	limiter   *services.RateLimiter

	linkMaxAttempts int
	linkWindow      time.Duration
}

func NewTicketHandler(tickets *services.TicketService, guests GuestLookup, deliverer services.Deliverer, limiter *services.RateLimiter, linkMaxAttempts int, linkWindow time.Duration) *TicketHandler {
	return &TicketHandler{
		tickets:         tickets,
		guests:          guests,
		deliverer:       deliverer,
		limiter:         limiter,
		linkMaxAttempts: linkMaxAttempts,
		linkWindow:      linkWindow,
	}
}

// GetTicket returns the previously issued ticket for a registration. It never
// issues; issuance only happens on the payment path.
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	registrationID := e.Request.PathValue("id")
	ticket, err := h.tickets.GetExisting(e.Request.Context(), registrationID)
	if err != nil {
		if errors.Is(err, status.ErrRegistrationNotFound) {
			return apis.NewNotFoundError("Registration not found", err)
		}
		return apis.NewInternalServerError("ticket lookup failed", err)
	}
	if ticket == nil {
		return apis.NewNotFoundError("No ticket issued", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"token":     ticket.Token,
		"qr_png":    ticket.QRPNG, // base64 in JSON
		"issued_at": ticket.IssuedAt,
	})
}

// RequestTicketLink re-delivers an already-issued ticket. Bounded per
// registration so a guest mashing "resend" cannot flood the mail gateway.
func (h *TicketHandler) RequestTicketLink(e *core.RequestEvent) error {
	registrationID := e.Request.PathValue("id")
	ctx := e.Request.Context()

	if h.limiter != nil {
		decision, err := h.limiter.Check(ctx, "ticket-link:"+registrationID, h.linkMaxAttempts, h.linkWindow)
		if err == nil && !decision.Allowed {
			return e.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "too many requests, try again later",
				"retry_after": decision.ResetAt,
			})
		}
	}

	ticket, err := h.tickets.GetExisting(ctx, registrationID)
	if err != nil {
		if errors.Is(err, status.ErrRegistrationNotFound) {
			return apis.NewNotFoundError("Registration not found", err)
		}
		return apis.NewInternalServerError("ticket lookup failed", err)
	}
	if ticket == nil {
		return apis.NewNotFoundError("No ticket issued", nil)
	}

	reg, err := h.guests.FindRegistration(ctx, registrationID)
	if err != nil {
		return apis.NewNotFoundError("Registration not found", err)
	}
	guest, err := h.guests.FindGuest(ctx, reg.GuestID)
	if err != nil {
		return apis.NewNotFoundError("Guest not found", err)
	}

	if h.deliverer != nil {
		if err := h.deliverer.Deliver(ctx, services.Delivery{
			Guest: *guest,
			Token: ticket.Token,
			QRPNG: ticket.QRPNG,
		}); err != nil {
			return apis.NewInternalServerError("delivery failed", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Ticket sent"})
}
