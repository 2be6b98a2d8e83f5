package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)

	assert.Len(t, code, 16)
	assert.Equal(t, strings.ToUpper(code), code)

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestGeneratePaymentRef(t *testing.T) {
	ref, err := GeneratePaymentRef()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "manual_"))
	assert.Len(t, ref, len("manual_")+16)
}

func TestQRCodePNG(t *testing.T) {
	png, err := QRCodePNG("eyJhbGciOiJIUzI1NiJ9.payload.sig", 256)
	require.NoError(t, err)

	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestQRCodePNG_DefaultSize(t *testing.T) {
	png, err := QRCodePNG("content", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestCircuitBreaker_PassesThroughWhileClosed(t *testing.T) {
	cb := NewCircuitBreaker("test")

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = cb.Execute(func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestCircuitBreaker_OpensAfterFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	for i := 0; i < 10; i++ {
		err := cb.Execute(func() error { return boom })
		require.ErrorIs(t, err, boom, "call %d runs while the breaker is closed", i)
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called, "open breaker must not run the request")
}

func TestCircuitBreaker_SuccessesKeepItClosed(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	// Interleave failures with enough successes to stay under the ratio.
	for i := 0; i < 20; i++ {
		var err error
		if i%3 == 0 {
			err = cb.Execute(func() error { return boom })
			assert.ErrorIs(t, err, boom)
		} else {
			err = cb.Execute(func() error { return nil })
			assert.NoError(t, err)
		}
	}
}
