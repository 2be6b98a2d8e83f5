package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketClassValid(t *testing.T) {
	assert.True(t, TicketClassVIP.Valid())
	assert.True(t, TicketClassSingle.Valid())
	assert.True(t, TicketClassPair.Valid())

	assert.False(t, TicketClass("").Valid())
	assert.False(t, TicketClass("platinum").Valid())
}

func TestPaymentCanCancel(t *testing.T) {
	assert.True(t, (&Payment{Status: PaymentPending}).CanCancel())
	assert.False(t, (&Payment{Status: PaymentPaid}).CanCancel())
	assert.False(t, (&Payment{Status: PaymentFailed}).CanCancel())
}

func TestEventAdmissionDeadline(t *testing.T) {
	starts := time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC)
	ends := starts.Add(6 * time.Hour)

	withEnd := &Event{StartsAt: starts, EndsAt: &ends}
	assert.Equal(t, ends, withEnd.AdmissionDeadline())

	openEnded := &Event{StartsAt: starts}
	assert.Equal(t, starts.Add(24*time.Hour), openEnded.AdmissionDeadline())
}
