package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Payment tracks one admission purchase attempt for a registration. Rows are
// never deleted; a failed payment may be superseded by a new row. Once Status
// is paid nothing moves it back.
type Payment struct {
	ID             string          `json:"id"`
	RegistrationID string          `json:"registration_id"`
	Status         PaymentStatus   `json:"status"`
	Method         PaymentMethod   `json:"method"`
	SessionRef     string          `json:"session_ref"`
	IntentRef      string          `json:"intent_ref,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// CanCancel reports whether a cancellation event may transition this payment
// to failed. Cancellation never downgrades a successful payment.
func (p *Payment) CanCancel() bool {
	return p.Status == PaymentPending
}
