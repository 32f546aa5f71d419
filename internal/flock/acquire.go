package flock

import (
	"context"
	"os"
	"time"

	"github.com/taskwire/taskwire/internal/errors"
)

const (
	// DefaultTimeout bounds how long Acquire waits for a contended lock.
	DefaultTimeout = 5 * time.Second

	// retryDelay is the pause between non-blocking lock attempts.
	retryDelay = 50 * time.Millisecond
)

// Acquire takes an exclusive lock on f, retrying every 50ms until the timeout
// elapses or ctx is canceled. A timeout <= 0 uses DefaultTimeout. On success
// the caller owns the lock and must release it with Unlock(f.Fd()).
//
// Returns ErrLockTimeout (wrapped with the file name) when the lock stays
// contended, or ctx.Err() on cancellation.
func Acquire(ctx context.Context, f *os.File, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		if err := Exclusive(f.Fd()); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(errors.ErrLockTimeout, "lock %s", f.Name())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
