package client

import (
	"context"
	"sync"
)

// Future is a value that becomes available once. Any number of goroutines
// may wait on it; all observe the same outcome.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve settles the future. Only the first call has an effect.
func (f *Future[T]) resolve(v T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Done is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has an outcome.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the failure, or nil while pending or after success.
func (f *Future[T]) Err() error {
	if !f.Settled() {
		return nil
	}
	return f.err
}

// Get waits for the outcome or for ctx to end.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait is Get without the value.
func (f *Future[T]) Wait(ctx context.Context) error {
	_, err := f.Get(ctx)
	return err
}
