package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"guestpass/internal/status"
	"guestpass/services"
)

type CheckinHandler struct {
	checkins *services.CheckinService
	limiter  *services.RateLimiter

	maxAttempts int
	window      time.Duration
}

func NewCheckinHandler(checkins *services.CheckinService, limiter *services.RateLimiter, maxAttempts int, window time.Duration) *CheckinHandler {
	return &CheckinHandler{
		checkins:    checkins,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// Scan evaluates a scanned ticket without recording anything.
func (h *CheckinHandler) Scan(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if ok, err := h.allow(e, "scan:"+e.Auth.Id); !ok {
		return err
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := e.BindBody(&req); err != nil || req.Token == "" {
		return apis.NewBadRequestError("Invalid request", err)
	}

	result, err := h.checkins.Evaluate(e.Request.Context(), req.Token)
	if err != nil {
		return apis.NewInternalServerError("scan evaluation failed", err)
	}

	return e.JSON(http.StatusOK, scanResponse(result))
}

// Submit records the admission decided by a prior scan. Override must be set
// explicitly to replace an existing check-in.
func (h *CheckinHandler) Submit(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	if ok, err := h.allow(e, "scan:"+e.Auth.Id); !ok {
		return err
	}

	var req struct {
		RegistrationID string `json:"registration_id"`
		Override       bool   `json:"override"`
	}
	if err := e.BindBody(&req); err != nil || req.RegistrationID == "" {
		return apis.NewBadRequestError("Invalid request", err)
	}

	checkin, err := h.checkins.Submit(e.Request.Context(), req.RegistrationID, e.Auth.Id, req.Override)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrAlreadyCheckedIn):
			return e.JSON(http.StatusConflict, map[string]any{
				"error": "already checked in",
				"code":  "already_checked_in",
			})
		case errors.Is(err, status.ErrRegistrationNotFound), errors.Is(err, status.ErrGuestNotFound):
			return apis.NewNotFoundError("Registration not found", err)
		default:
			return apis.NewInternalServerError("check-in failed", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"checkin_id":    checkin.ID,
		"checked_in_at": checkin.CheckedInAt,
		"override":      checkin.Override,
	})
}

// allow reports whether the caller may proceed. On a blocked decision it
// writes the 429 itself and returns ok=false so the handler stops before any
// gated work runs.
func (h *CheckinHandler) allow(e *core.RequestEvent, key string) (bool, error) {
	if h.limiter == nil {
		return true, nil
	}
	decision, err := h.limiter.Check(e.Request.Context(), key, h.maxAttempts, h.window)
	if err != nil {
		// Scanning must keep working through a limiter outage.
		return true, nil
	}
	if !decision.Allowed {
		return false, e.JSON(http.StatusTooManyRequests, map[string]any{
			"error":       "too many scans, slow down",
			"retry_after": decision.ResetAt,
		})
	}
	return true, nil
}

func scanResponse(result *services.ScanResult) map[string]any {
	resp := map[string]any{
		"state": string(result.State),
	}
	if result.Reason != nil {
		resp["reason"] = reasonCode(result.Reason)
	}
	if result.Claims != nil {
		resp["guest_name"] = result.Claims.GuestName
		resp["ticket_class"] = string(result.Claims.TicketClass)
	}
	if result.Registration != nil {
		resp["registration_id"] = result.Registration.ID
	}
	if result.Prior != nil {
		resp["prior"] = map[string]any{
			"checked_in_at": result.Prior.CheckedInAt,
			"staff_id":      result.Prior.StaffID,
			"override":      result.Prior.Override,
		}
	}
	return resp
}

func reasonCode(err error) string {
	switch {
	case errors.Is(err, status.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, status.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, status.ErrTokenMismatch):
		return "token_mismatch"
	case errors.Is(err, status.ErrRegistrationNotFound):
		return "registration_not_found"
	case errors.Is(err, status.ErrGuestNotFound):
		return "guest_not_found"
	case errors.Is(err, status.ErrAlreadyCheckedIn):
		return "already_checked_in"
	default:
		return "error"
	}
}
