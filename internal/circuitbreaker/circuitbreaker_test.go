package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/amazonpay-order-admin/internal/circuitbreaker"
)

const (
	testOperation    = "GetCharge"
	anotherOperation = "CaptureCharge"
)

var errBoom = errors.New("boom")

func fail() (any, error) { return nil, errBoom }
func succeed() (any, error) { return "ok", nil }

func TestBreakers_DefaultsToClosed(t *testing.T) {
	b := circuitbreaker.New(circuitbreaker.Config{}, nil)
	assert.Equal(t, gobreaker.StateClosed, b.State(testOperation))

	res, err := b.Execute(testOperation, succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestBreakers_OpensAfterThreshold(t *testing.T) {
	b := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, OpenTimeout: time.Minute}, nil)

	_, err := b.Execute(testOperation, fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, gobreaker.StateClosed, b.State(testOperation), "Should still be closed after 1 failure")

	_, err = b.Execute(testOperation, fail)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, gobreaker.StateOpen, b.State(testOperation))

	called := false
	_, err = b.Execute(testOperation, func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.False(t, called, "Open breaker must not invoke the call")

	assert.Equal(t, gobreaker.StateClosed, b.State(anotherOperation), "Breakers are independent per name")
}

func TestBreakers_HalfOpenRecovers(t *testing.T) {
	b := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		OpenTimeout:      20 * time.Millisecond,
		HalfOpenRequests: 1,
	}, nil)

	_, _ = b.Execute(testOperation, fail)
	require.Equal(t, gobreaker.StateOpen, b.State(testOperation))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, b.State(testOperation))

	_, err := b.Execute(testOperation, succeed)
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, b.State(testOperation))
}

func TestBreakers_IsSuccessfulIgnoresBusinessErrors(t *testing.T) {
	errRejected := errors.New("rejected by provider")
	b := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
	}, nil)

	_, err := b.Execute(testOperation, func() (any, error) { return nil, errRejected })
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, gobreaker.StateClosed, b.State(testOperation))
}
