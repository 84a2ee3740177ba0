package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines the backoff between reconnect attempts
type RetryPolicy struct {
	MaxAttempts    int           // Consecutive failed dials before giving up; 0 retries forever
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
	JitterFactor   float64       // Random jitter factor (0.0 to 1.0)
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    10,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.1,
	}
}

// CalculateBackoff calculates the backoff duration for a given attempt number
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return p.InitialBackoff
	}

	// Calculate exponential backoff: initial * factor^attempt
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))

	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	if p.JitterFactor > 0 {
		jitter := backoff * p.JitterFactor * (rand.Float64()*2 - 1) // -jitter to +jitter
		backoff += jitter
	}

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

// exhausted reports whether failed consecutive attempts used up the policy.
func (p *RetryPolicy) exhausted(failed int) bool {
	return p.MaxAttempts > 0 && failed >= p.MaxAttempts
}

// Reconnect keeps the socket open until ctx ends or Close is called, waiting
// according to policy between attempts. It returns nil after Close, the
// context error on cancellation, and an ErrReconnect error when the policy
// runs out of consecutive attempts. Sockets never reconnect on their own.
func (s *Socket) Reconnect(ctx context.Context, policy *RetryPolicy) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	failed := 0
	for {
		ended := s.endedSignal()
		err := s.Open(ctx).Wait(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			failed = 0
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ended:
			}
		} else {
			if errors.Is(err, ErrSocketClosed) && s.closedByCaller() {
				return nil
			}
			failed++
			if policy.exhausted(failed) {
				return fmt.Errorf("%w: %v", ErrReconnect, err)
			}
		}
		if s.closedByCaller() {
			return nil
		}

		delay := policy.CalculateBackoff(failed)
		s.log.Info().Int("attempt", failed).Dur("delay", delay).Msg("reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if s.closedByCaller() {
			return nil
		}
	}
}
