package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpass/internal/provider"
	"guestpass/models"
)

type fakeConfirmer struct {
	confirms []string
	cancels  []string

	confirmErr error
	cancelErr  error
}

func (f *fakeConfirmer) Confirm(_ context.Context, sessionRef, chargeRef string) (*models.Payment, error) {
	f.confirms = append(f.confirms, sessionRef+"/"+chargeRef)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &models.Payment{SessionRef: sessionRef, Status: models.PaymentPaid}, nil
}

func (f *fakeConfirmer) Cancel(_ context.Context, sessionRef string) error {
	f.cancels = append(f.cancels, sessionRef)
	return f.cancelErr
}

func TestWebhookDispatch_CompletedConfirms(t *testing.T) {
	confirmer := &fakeConfirmer{}
	h := NewWebhookHandler(confirmer, nil, "whsec", 0, 0)

	err := h.Dispatch(context.Background(), &provider.Event{
		Type: provider.EventCheckoutCompleted,
		Data: provider.EventData{SessionRef: "cs_1", IntentRef: "pi_1", PaymentStatus: "paid"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cs_1/pi_1"}, confirmer.confirms)
	assert.Empty(t, confirmer.cancels)
}

func TestWebhookDispatch_CompletedUnpaidWaits(t *testing.T) {
	confirmer := &fakeConfirmer{}
	h := NewWebhookHandler(confirmer, nil, "whsec", 0, 0)

	// Async settlement: the session completed but money has not moved yet.
	err := h.Dispatch(context.Background(), &provider.Event{
		Type: provider.EventCheckoutCompleted,
		Data: provider.EventData{SessionRef: "cs_1", PaymentStatus: "unpaid"},
	})
	require.NoError(t, err)

	assert.Empty(t, confirmer.confirms)
	assert.Empty(t, confirmer.cancels)
}

func TestWebhookDispatch_AsyncSucceededConfirms(t *testing.T) {
	confirmer := &fakeConfirmer{}
	h := NewWebhookHandler(confirmer, nil, "whsec", 0, 0)

	err := h.Dispatch(context.Background(), &provider.Event{
		Type: provider.EventAsyncPaymentSucceeded,
		Data: provider.EventData{SessionRef: "cs_1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cs_1/"}, confirmer.confirms)
}

func TestWebhookDispatch_FailureEventsCancel(t *testing.T) {
	for _, eventType := range []provider.EventType{
		provider.EventCheckoutExpired,
		provider.EventAsyncPaymentFailed,
		provider.EventPaymentIntentFailed,
	} {
		t.Run(string(eventType), func(t *testing.T) {
			confirmer := &fakeConfirmer{}
			h := NewWebhookHandler(confirmer, nil, "whsec", 0, 0)

			err := h.Dispatch(context.Background(), &provider.Event{
				Type: eventType,
				Data: provider.EventData{SessionRef: "cs_1"},
			})
			require.NoError(t, err)

			assert.Equal(t, []string{"cs_1"}, confirmer.cancels)
			assert.Empty(t, confirmer.confirms)
		})
	}
}

func TestWebhookHandler_IntakeKeyPerProvider(t *testing.T) {
	first := NewWebhookHandler(&fakeConfirmer{}, nil, "whsec_one", 120, time.Minute)
	second := NewWebhookHandler(&fakeConfirmer{}, nil, "whsec_two", 120, time.Minute)

	assert.True(t, strings.HasPrefix(first.intakeKey, "webhook:"))
	assert.NotEqual(t, first.intakeKey, second.intakeKey,
		"each provider integration gets its own intake window")

	// Same secret, same window.
	again := NewWebhookHandler(&fakeConfirmer{}, nil, "whsec_one", 120, time.Minute)
	assert.Equal(t, first.intakeKey, again.intakeKey)
}

func TestWebhookDispatch_UnknownTypeIgnored(t *testing.T) {
	confirmer := &fakeConfirmer{}
	h := NewWebhookHandler(confirmer, nil, "whsec", 0, 0)

	err := h.Dispatch(context.Background(), &provider.Event{Type: "charge.refunded"})
	require.NoError(t, err)

	assert.Empty(t, confirmer.confirms)
	assert.Empty(t, confirmer.cancels)
}

func TestWebhookDispatch_ConfirmErrorPropagates(t *testing.T) {
	boom := errors.New("database is locked")
	confirmer := &fakeConfirmer{confirmErr: boom}
	h := NewWebhookHandler(confirmer, nil, "whsec", 0, 0)

	err := h.Dispatch(context.Background(), &provider.Event{
		Type: provider.EventCheckoutCompleted,
		Data: provider.EventData{SessionRef: "cs_1"},
	})
	assert.ErrorIs(t, err, boom)

	// The propagated error lands in the retry class, so the provider redelivers.
	assert.Equal(t, provider.ClassRetry, provider.Classify(err, provider.DefaultTriage))
}
