package common

import (
	"context"
	"time"
)

// Retry calls fn until it succeeds, the number of attempts is exhausted, or the
// context is cancelled. The wait between two attempts starts at backoff and
// doubles after every failure. The last error returned by fn is returned.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(backoff << uint(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}
