package retry

import (
	"context"
	"time"
)

// Config bounds how often and how patiently an operation is re-run.
type Config struct {
	Attempts  int           // total tries, including the first one
	Delay     time.Duration // wait before the second try; doubled afterwards
	Retryable func(error) bool
}

// Once retries a single time after a short pause.
func Once(retryable func(error) bool) Config {
	return Config{Attempts: 2, Delay: 50 * time.Millisecond, Retryable: retryable}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are used up or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.Delay

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
