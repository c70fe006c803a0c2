package breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/grounder/pkg/breaker"
)

// fakeClock lets tests drive cooldowns and rate windows deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(cfg breaker.Config) (*breaker.Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg.Now = clock.Now
	return breaker.New(cfg), clock
}

var errProvider = errors.New("provider unavailable")

func failingOp() error    { return errProvider }
func succeedingOp() error { return nil }

func fallbackSpy(calls *[]breaker.Reason) breaker.Fallback {
	return func(reason breaker.Reason) error {
		*calls = append(*calls, reason)
		return nil
	}
}

func TestExecute_SuccessPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(breaker.Config{})

	var fallbacks []breaker.Reason
	err := b.Execute(succeedingOp, fallbackSpy(&fallbacks))

	assert.NoError(t, err)
	assert.Empty(t, fallbacks)
	assert.Equal(t, breaker.Closed, b.Status().State)
}

func TestExecute_FailureRunsFallback(t *testing.T) {
	b, _ := newTestBreaker(breaker.Config{})

	var fallbacks []breaker.Reason
	err := b.Execute(failingOp, fallbackSpy(&fallbacks))

	assert.NoError(t, err)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, breaker.ReasonFailure, fallbacks[0].Kind)
	assert.ErrorIs(t, fallbacks[0].Err, errProvider)
	assert.Equal(t, breaker.Closed, b.Status().State)
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(breaker.Config{FailureThreshold: 5})

	var fallbacks []breaker.Reason
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	}
	assert.Equal(t, breaker.Open, b.Status().State)

	// While open, the operation is never attempted.
	opCalled := false
	err := b.Execute(func() error {
		opCalled = true
		return nil
	}, fallbackSpy(&fallbacks))

	assert.NoError(t, err)
	assert.False(t, opCalled)
	require.Len(t, fallbacks, 6)
	assert.Equal(t, breaker.ReasonOpen, fallbacks[5].Kind)
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(breaker.Config{FailureThreshold: 3})

	var fallbacks []breaker.Reason
	require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	require.NoError(t, b.Execute(succeedingOp, fallbackSpy(&fallbacks)))
	require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))

	assert.Equal(t, breaker.Closed, b.Status().State)
	assert.Equal(t, int32(1), b.Status().Failures)
}

func TestExecute_HalfOpenTrialAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(breaker.Config{
		FailureThreshold: 2,
		SuccessThreshold: 3,
		Cooldown:         time.Minute,
	})

	var fallbacks []breaker.Reason
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	}
	require.Equal(t, breaker.Open, b.Status().State)

	clock.Advance(time.Minute)

	// Trial calls pass through; the circuit closes only after enough
	// consecutive successes.
	require.NoError(t, b.Execute(succeedingOp, fallbackSpy(&fallbacks)))
	assert.Equal(t, breaker.HalfOpen, b.Status().State)
	require.NoError(t, b.Execute(succeedingOp, fallbackSpy(&fallbacks)))
	assert.Equal(t, breaker.HalfOpen, b.Status().State)
	require.NoError(t, b.Execute(succeedingOp, fallbackSpy(&fallbacks)))
	assert.Equal(t, breaker.Closed, b.Status().State)
}

func TestExecute_HalfOpenFailureReopensImmediately(t *testing.T) {
	b, clock := newTestBreaker(breaker.Config{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
	})

	var fallbacks []breaker.Reason
	for i := 0; i < 2; i++ {
		require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	}
	clock.Advance(time.Minute)

	require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	assert.Equal(t, breaker.Open, b.Status().State)

	// The reopened circuit short-circuits again until the next cooldown.
	opCalled := false
	require.NoError(t, b.Execute(func() error {
		opCalled = true
		return nil
	}, fallbackSpy(&fallbacks)))
	assert.False(t, opCalled)
}

func TestExecute_RateLimitRejectsWithoutCountingFailures(t *testing.T) {
	b, clock := newTestBreaker(breaker.Config{
		MaxRequests: 3,
		RateWindow:  time.Minute,
	})

	var fallbacks []breaker.Reason
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Execute(succeedingOp, fallbackSpy(&fallbacks)))
	}
	require.Empty(t, fallbacks)

	opCalled := false
	require.NoError(t, b.Execute(func() error {
		opCalled = true
		return nil
	}, fallbackSpy(&fallbacks)))

	assert.False(t, opCalled)
	require.Len(t, fallbacks, 1)
	assert.Equal(t, breaker.ReasonRateLimited, fallbacks[0].Kind)
	assert.Equal(t, int32(0), b.Status().Failures)
	assert.Equal(t, breaker.Closed, b.Status().State)

	// A fresh window admits requests again.
	clock.Advance(time.Minute)
	require.NoError(t, b.Execute(succeedingOp, fallbackSpy(&fallbacks)))
	assert.Len(t, fallbacks, 1)
}

func TestExecute_FallbackErrorPropagates(t *testing.T) {
	b, _ := newTestBreaker(breaker.Config{})

	errFallback := errors.New("fallback also failed")
	err := b.Execute(failingOp, func(breaker.Reason) error { return errFallback })

	assert.ErrorIs(t, err, errFallback)
}

func TestReset_ForcesClosed(t *testing.T) {
	b, _ := newTestBreaker(breaker.Config{FailureThreshold: 1})

	var fallbacks []breaker.Reason
	require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	require.Equal(t, breaker.Open, b.Status().State)

	b.Reset()

	status := b.Status()
	assert.Equal(t, breaker.Closed, status.State)
	assert.Equal(t, int32(0), status.Failures)

	opCalled := false
	require.NoError(t, b.Execute(func() error {
		opCalled = true
		return nil
	}, fallbackSpy(&fallbacks)))
	assert.True(t, opCalled)
}

func TestStatus_TracksLastFailure(t *testing.T) {
	b, clock := newTestBreaker(breaker.Config{})

	assert.True(t, b.Status().LastFailure.IsZero())

	var fallbacks []breaker.Reason
	require.NoError(t, b.Execute(failingOp, fallbackSpy(&fallbacks)))
	assert.Equal(t, clock.Now().UnixNano(), b.Status().LastFailure.UnixNano())
}
