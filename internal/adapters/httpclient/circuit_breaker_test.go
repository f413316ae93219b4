package httpclient_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/adapters/httpclient"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := httpclient.NewCircuitBreaker(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return errors.New("boom") })
		require.Error(t, err)
	}

	assert.Equal(t, httpclient.CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), httpclient.ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenAfterTimeoutThenClosesOnSuccess(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := httpclient.NewCircuitBreaker(1, time.Minute, clock)

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	assert.Equal(t, httpclient.CircuitOpen, cb.State())

	clock.Advance(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, httpclient.CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := httpclient.NewCircuitBreaker(1, time.Minute, clock)

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	clock.Advance(2 * time.Minute)
	require.Error(t, cb.Call(func() error { return errors.New("still broken") }))
	assert.Equal(t, httpclient.CircuitOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cb := httpclient.NewCircuitBreaker(1, time.Minute, clock)

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	cb.Reset()
	assert.Equal(t, httpclient.CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}
