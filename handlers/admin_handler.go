package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"guestpass/internal/status"
	"guestpass/services"
)

// AdminHandler wraps the operator-only payment actions for whatever admin UI
// the surrounding application provides.
type AdminHandler struct {
	payments *services.PaymentService
}

func NewAdminHandler(payments *services.PaymentService) *AdminHandler {
	return &AdminHandler{payments: payments}
}

// ApproveManual marks a bank-transfer registration as paid and approved.
// Calling it twice is safe; the second call is a no-op.
func (h *AdminHandler) ApproveManual(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewForbiddenError("Superuser required", nil)
	}

	var req struct {
		RegistrationID string          `json:"registration_id"`
		Amount         decimal.Decimal `json:"amount"`
	}
	if err := e.BindBody(&req); err != nil || req.RegistrationID == "" {
		return apis.NewBadRequestError("Invalid request", err)
	}

	payment, err := h.payments.ApproveManual(e.Request.Context(), req.RegistrationID, req.Amount)
	if err != nil {
		if errors.Is(err, status.ErrRegistrationNotFound) {
			return apis.NewNotFoundError("Registration not found", err)
		}
		return apis.NewInternalServerError("manual approval failed", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id":  payment.ID,
		"session_ref": payment.SessionRef,
		"status":      string(payment.Status),
		"paid_at":     payment.PaidAt,
	})
}
