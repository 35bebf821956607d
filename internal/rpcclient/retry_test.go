package rpcclient

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, baseMS: 1, multiplier: 2, ceilingMS: 10}
	calls := 0
	err := p.do(context.Background(), discardLogger(), "testMethod", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsAndSurfacesLastError(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, baseMS: 1, multiplier: 2, ceilingMS: 10}
	calls := 0
	wantErr := errors.New("permanent")
	err := p.do(context.Background(), discardLogger(), "testMethod", func() error {
		calls++
		return wantErr
	})
	if calls != 3 {
		t.Fatalf("expected maxAttempts=3 calls, got %d", calls)
	}
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *RetryExhaustedError, got %T: %v", err, err)
	}
	if !errors.Is(exhausted, wantErr) && !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error to be wantErr, got %v", exhausted.Last)
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, baseMS: 1000, multiplier: 2, ceilingMS: 30000}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := p.do(ctx, discardLogger(), "testMethod", func() error {
		calls++
		return errors.New("fail")
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
