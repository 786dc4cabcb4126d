package store

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// DefaultMaxAttempts bounds optimistic-concurrency retries.
const DefaultMaxAttempts = 5

const baseBackoff = 20 * time.Millisecond

// WithRetry runs fn until it returns something other than ErrConflict, up to
// attempts tries, sleeping a jittered exponential backoff between tries.
// Only conditional writes and reads go through here; unconditional writes
// must never be retried.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if !errors.Is(err, ErrConflict) {
			return err
		}
		delay := baseBackoff << i
		delay += time.Duration(rand.Int63n(int64(baseBackoff)))
		select {
		case <-ctx.Done():
			return ErrTimeout
		case <-time.After(delay):
		}
	}
	return err
}
