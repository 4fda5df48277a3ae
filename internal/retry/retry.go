package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Policy retries transient failures a bounded number of times with a fixed
// delay between attempts. Fatal failures return immediately.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
}

// StatusError reports a non-2xx response from an upstream HTTP service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Transient reports whether the failure may succeed on a later attempt.
// Connection errors, timeouts and server-side 5xx responses are transient;
// client-side 4xx responses and cancelled contexts are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do runs fn until it succeeds, fails fatally, or the attempt budget is
// spent. The inter-attempt wait observes ctx cancellation.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(p.Delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !Transient(lastErr) {
			return fmt.Errorf("%s: %w", op, lastErr)
		}

		if p.Logger != nil {
			p.Logger.Warn("transient failure",
				"op", op,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", lastErr)
		}
	}

	return fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}
