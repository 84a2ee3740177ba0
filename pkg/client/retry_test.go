package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 10, policy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, policy.InitialBackoff)
	assert.Equal(t, 30*time.Second, policy.MaxBackoff)
	assert.Equal(t, 2.0, policy.BackoffFactor)
	assert.Equal(t, 0.1, policy.JitterFactor)
}

func TestRetryPolicy_CalculateBackoff(t *testing.T) {
	policy := &RetryPolicy{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     1 * time.Minute,
		BackoffFactor:  2.0,
		JitterFactor:   0, // No jitter for predictable tests
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 1 * time.Minute}, // Capped at max
	}

	for _, tt := range tests {
		backoff := policy.CalculateBackoff(tt.attempt)
		assert.Equal(t, tt.expected, backoff, "attempt %d", tt.attempt)
	}
}

func TestRetryPolicy_CalculateBackoff_WithJitter(t *testing.T) {
	policy := &RetryPolicy{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     1 * time.Minute,
		BackoffFactor:  2.0,
		JitterFactor:   0.5,
	}

	for i := 0; i < 10; i++ {
		backoff := policy.CalculateBackoff(1)
		// Base is 2s, with 50% jitter, range is 1s-3s
		assert.GreaterOrEqual(t, backoff, 1*time.Second)
		assert.LessOrEqual(t, backoff, 3*time.Second)
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	assert.False(t, (&RetryPolicy{}).exhausted(100), "zero retries forever")
	assert.False(t, (&RetryPolicy{MaxAttempts: 3}).exhausted(2))
	assert.True(t, (&RetryPolicy{MaxAttempts: 3}).exhausted(3))
}

func fastPolicy(max int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    max,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestSocket_ReconnectAfterDrop(t *testing.T) {
	relay := newRelayStub(t)
	s := NewSocket(relay.url())

	done := make(chan error, 1)
	go func() {
		done <- s.Reconnect(context.Background(), fastPolicy(5))
	}()

	first := relay.nextConn(t)
	first.Close()

	relay.nextConn(t)
	assert.Eventually(t, func() bool { return s.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect loop did not stop after Close")
	}
}

func TestSocket_ReconnectGivesUp(t *testing.T) {
	relay := newRelayStub(t)
	addr := relay.url()
	relay.server.Close()

	s := NewSocket(addr)
	err := s.Reconnect(context.Background(), fastPolicy(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconnect)
}

func TestSocket_ReconnectContextCanceled(t *testing.T) {
	relay := newRelayStub(t)
	s := NewSocket(relay.url())
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Reconnect(ctx, fastPolicy(0))
	}()

	relay.nextConn(t)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect loop ignored cancellation")
	}
}
