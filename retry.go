package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// retryAction tells retryDo what to do with a failed attempt.
type retryAction int

const (
	retryStop  retryAction = iota // permanent error, abort immediately
	retryAgain                    // transient error, back off and try again
)

// retryPolicy is an exponential backoff: the wait doubles after every failed
// attempt, starting at InitialBackoff.
type retryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	OnRetry        func(attempt int, err error, backoff time.Duration)
}

// retryDo runs op until it succeeds, classify says stop, MaxAttempts is
// reached or ctx is cancelled.  Waits use clock so tests can drive them.
func retryDo[T any](ctx context.Context, clock clockwork.Clock, p retryPolicy, classify func(error) retryAction, op func() (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}
		if classify(err) == retryStop {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-clock.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return zero, fmt.Errorf("cancelled during retry: %w", ctx.Err())
		}
	}
}
