package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"session_ref": "cs_123", "intent_ref": "pi_456", "payment_status": "paid", "amount": "150.00"}
	}`)

	ev, err := ParseEvent(body)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_123", ev.Data.SessionRef)
	assert.Equal(t, "pi_456", ev.Data.IntentRef)
	assert.Equal(t, "paid", ev.Data.PaymentStatus)
	assert.Equal(t, "150", ev.Data.Amount.String())
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseEvent_MissingType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id": "evt_1", "data": {}}`))
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	assert.True(t, VerifySignature(body, Sign(body, secret), secret))
}

func TestVerifySignature_Rejects(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	cases := []struct {
		name      string
		body      []byte
		signature string
		secret    string
	}{
		{"wrong secret", body, Sign(body, "whsec_other"), secret},
		{"tampered body", []byte(`{"id":"evt_2"}`), Sign(body, secret), secret},
		{"empty signature", body, "", secret},
		{"empty secret", body, Sign(body, secret), ""},
		{"garbage signature", body, "deadbeef", secret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, VerifySignature(tc.body, tc.signature, tc.secret))
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"nil is ack", nil, ClassAck},
		{"already paid", errors.New("payment: already paid"), ClassAck},
		{"payment not found", errors.New("payment: payment not found"), ClassAck},
		{"wrapped payment not found", fmt.Errorf("confirm cs_1: %w", errors.New("payment: payment not found")), ClassAck},
		{"registration not found", errors.New("registration: registration not found"), ClassRetry},
		{"sqlite busy", errors.New("database is locked"), ClassRetry},
		{"timeout", errors.New("context deadline exceeded"), ClassRetry},
		{"redis down", errors.New("dial tcp 127.0.0.1:6379: connection refused"), ClassRetry},
		{"unknown", errors.New("something novel happened"), ClassInvestigate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err, DefaultTriage))
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	table := []TriageRule{
		{Match: "boom", Class: ClassAck},
		{Match: "boom", Class: ClassRetry},
	}
	assert.Equal(t, ClassAck, Classify(errors.New("boom"), table))
}

func TestClassify_EmptyTable(t *testing.T) {
	assert.Equal(t, ClassInvestigate, Classify(errors.New("anything"), nil))
}
