package chain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d != 3", attempts)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := WithRetry(context.Background(), 2, time.Millisecond, func(ctx context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error mismatch: %v != %v", err, boom)
	}
	if attempts != 3 {
		t.Fatalf("attempts mismatch: %d != 3", attempts)
	}
}

func TestWithRetryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithRetry(ctx, 5, time.Minute, func(ctx context.Context) error {
		attempts++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error mismatch: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts mismatch: %d != 1", attempts)
	}
}
