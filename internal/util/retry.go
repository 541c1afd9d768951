package util

import (
	"context"
	"errors"
	"time"
)

// Backoff is an exponential retry schedule.
type Backoff struct {
	// Attempts is the total number of calls, first one included.
	Attempts int
	// Base is the delay before the first retry; each retry doubles it.
	Base time.Duration
	// Max caps the delay. Zero leaves it uncapped.
	Max time.Duration
}

// Delay returns the wait before retry n, counting from 0.
func (b Backoff) Delay(n int) time.Duration {
	d := b.Base
	for i := 0; i < n; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or the
// schedule runs out. fn receives the attempt number starting at 1. The last
// error is returned with any Permanent marker removed. Cancelling ctx stops
// the wait between attempts.
func Retry(ctx context.Context, b Backoff, fn func(attempt int) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(b.Delay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
