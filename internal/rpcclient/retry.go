package rpcclient

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// retryPolicy retries a fallible call up to maxAttempts times with
// exponential backoff (baseMS, doubling by multiplier, capped at
// ceilingMS). Transport errors, JSON-RPC error objects, and malformed
// payloads are all retried uniformly; the last error is surfaced once
// attempts are exhausted.
type retryPolicy struct {
	maxAttempts int
	baseMS      int
	multiplier  float64
	ceilingMS   int
}

// RetryExhaustedError wraps the final error after all attempts failed.
type RetryExhaustedError struct {
	Method   string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return e.Last.Error() + " (after " + strconv.Itoa(e.Attempts) + " attempts calling " + e.Method + ")"
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

func (p retryPolicy) do(ctx context.Context, log *logrus.Logger, method string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.maxAttempts-1 {
			break
		}

		delay := p.backoff(attempt)
		log.WithFields(logrus.Fields{
			"method":  method,
			"attempt": attempt + 1,
			"delayMS": delay.Milliseconds(),
		}).WithError(err).Warn("rpcclient: call failed, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return &RetryExhaustedError{Method: method, Attempts: p.maxAttempts, Last: lastErr}
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	ms := float64(p.baseMS) * math.Pow(p.multiplier, float64(attempt))
	if ms > float64(p.ceilingMS) {
		ms = float64(p.ceilingMS)
	}
	return time.Duration(ms) * time.Millisecond
}
