package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"guestpass/internal/status"
	"guestpass/models"
	"guestpass/monitoring"
	"guestpass/utils"
)

// PaymentTx is the storage surface available inside a payment transaction.
type PaymentTx interface {
	FindPaymentBySession(ctx context.Context, sessionRef string) (*models.Payment, error)
	FindPaymentByRegistration(ctx context.Context, registrationID string) (*models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment) error
	SetRegistrationStatus(ctx context.Context, registrationID string, st models.RegistrationStatus) error
}

// PaymentStore extends PaymentTx with the transaction boundary.
type PaymentStore interface {
	PaymentTx
	FindRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindGuest(ctx context.Context, id string) (*models.Guest, error)
	WithinPaymentTx(ctx context.Context, fn func(tx PaymentTx) error) error
}

// TicketIssuer issues the signed ticket after a payment commits.
type TicketIssuer interface {
	Issue(ctx context.Context, registrationID string) (string, error)
}

type PaymentService struct {
	store     PaymentStore
	tickets   TicketIssuer
	deliverer Deliverer
}

func NewPaymentService(store PaymentStore, tickets TicketIssuer, deliverer Deliverer) *PaymentService {
	return &PaymentService{
		store:     store,
		tickets:   tickets,
		deliverer: deliverer,
	}
}

// Confirm transitions the payment for sessionRef to paid, exactly once. A
// payment that is already paid is returned unchanged; that no-op is the
// primary defense against duplicate delivery of the same provider event.
// Ticket issuance and delivery run after the transaction commits and never
// roll the payment back.
func (s *PaymentService) Confirm(ctx context.Context, sessionRef, chargeRef string) (*models.Payment, error) {
	payment, err := s.store.FindPaymentBySession(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentPaid {
		monitoring.TrackPaymentEvent("confirm", "duplicate")
		return payment, nil
	}

	var confirmed *models.Payment
	transitioned := false
	err = s.store.WithinPaymentTx(ctx, func(tx PaymentTx) error {
		current, err := tx.FindPaymentBySession(ctx, sessionRef)
		if err != nil {
			return err
		}
		if current.Status == models.PaymentPaid {
			confirmed = current
			return nil
		}

		now := time.Now()
		current.Status = models.PaymentPaid
		current.PaidAt = &now
		if chargeRef != "" {
			current.IntentRef = chargeRef
		}
		if err := tx.SavePayment(ctx, current); err != nil {
			return err
		}
		if err := tx.SetRegistrationStatus(ctx, current.RegistrationID, models.RegistrationApproved); err != nil {
			return err
		}

		confirmed = current
		transitioned = true
		return nil
	})
	if err != nil {
		monitoring.TrackPaymentEvent("confirm", "error")
		return nil, err
	}

	if transitioned {
		monitoring.TrackPaymentEvent("confirm", "paid")
		s.afterPaid(ctx, confirmed)
	} else {
		monitoring.TrackPaymentEvent("confirm", "duplicate")
	}
	return confirmed, nil
}

// Cancel moves a pending payment to failed. Absent payments and payments in
// any other state are left untouched; a cancellation must never downgrade a
// successful payment.
func (s *PaymentService) Cancel(ctx context.Context, sessionRef string) error {
	err := s.store.WithinPaymentTx(ctx, func(tx PaymentTx) error {
		payment, err := tx.FindPaymentBySession(ctx, sessionRef)
		if err != nil {
			if errors.Is(err, status.ErrPaymentNotFound) {
				return nil
			}
			return err
		}
		if !payment.CanCancel() {
			return nil
		}
		payment.Status = models.PaymentFailed
		return tx.SavePayment(ctx, payment)
	})
	if err != nil {
		monitoring.TrackPaymentEvent("cancel", "error")
		return err
	}
	monitoring.TrackPaymentEvent("cancel", "ok")
	return nil
}

// ApproveManual is the bank-transfer / admin equivalent of Confirm: it creates
// the payment row in paid state when none exists, or promotes the existing
// one, in the same transaction as the registration approval.
func (s *PaymentService) ApproveManual(ctx context.Context, registrationID string, amount decimal.Decimal) (*models.Payment, error) {
	if _, err := s.store.FindRegistration(ctx, registrationID); err != nil {
		return nil, err
	}

	var approved *models.Payment
	transitioned := false
	err := s.store.WithinPaymentTx(ctx, func(tx PaymentTx) error {
		payment, err := tx.FindPaymentByRegistration(ctx, registrationID)
		if err != nil {
			if !errors.Is(err, status.ErrPaymentNotFound) {
				return err
			}
			ref, err := utils.GeneratePaymentRef()
			if err != nil {
				return err
			}
			payment = &models.Payment{
				RegistrationID: registrationID,
				Method:         models.MethodBankTransfer,
				SessionRef:     ref,
				Amount:         amount,
			}
		}
		if payment.Status == models.PaymentPaid {
			approved = payment
			return nil
		}

		now := time.Now()
		payment.Status = models.PaymentPaid
		payment.PaidAt = &now
		if err := tx.SavePayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.SetRegistrationStatus(ctx, registrationID, models.RegistrationApproved); err != nil {
			return err
		}

		approved = payment
		transitioned = true
		return nil
	})
	if err != nil {
		monitoring.TrackPaymentEvent("manual_approve", "error")
		return nil, err
	}

	if transitioned {
		monitoring.TrackPaymentEvent("manual_approve", "paid")
		s.afterPaid(ctx, approved)
	} else {
		monitoring.TrackPaymentEvent("manual_approve", "duplicate")
	}
	return approved, nil
}

// afterPaid runs the post-commit side-effect chain: ticket issuance then
// delivery. Failures here are reported but never surfaced as payment errors;
// the payment is already committed and duplicate confirmations will retry the
// chain through the issuance lock.
func (s *PaymentService) afterPaid(ctx context.Context, payment *models.Payment) {
	token, err := s.tickets.Issue(ctx, payment.RegistrationID)
	if err != nil {
		slog.Error("ticket issuance after payment failed",
			"registration", payment.RegistrationID,
			"session_ref", payment.SessionRef,
			"error", err,
		)
		return
	}

	if s.deliverer == nil {
		return
	}
	guest, err := s.guestFor(ctx, payment.RegistrationID)
	if err != nil {
		slog.Error("ticket delivery lookup failed", "registration", payment.RegistrationID, "error", err)
		return
	}
	png, err := utils.QRCodePNG(token, 256)
	if err != nil {
		slog.Error("ticket qr render failed", "registration", payment.RegistrationID, "error", err)
		return
	}
	if err := s.deliverer.Deliver(ctx, Delivery{Guest: *guest, Token: token, QRPNG: png}); err != nil {
		slog.Error("ticket delivery failed", "registration", payment.RegistrationID, "error", err)
	}
}

func (s *PaymentService) guestFor(ctx context.Context, registrationID string) (*models.Guest, error) {
	reg, err := s.store.FindRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	return s.store.FindGuest(ctx, reg.GuestID)
}
