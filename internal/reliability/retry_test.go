package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{5, 400 * time.Millisecond},
	}
	for _, tc := range cases {
		got := ExponentialBackoff(tc.attempt, 50*time.Millisecond, 400*time.Millisecond)
		if got != tc.want {
			t.Fatalf("ExponentialBackoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, 4*time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	want := errors.New("still broken")
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, 2*time.Millisecond, func(context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Retry() error = %v, want %v", err, want)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, 10*time.Millisecond, 40*time.Millisecond, func(context.Context) error {
		calls++
		cancel()
		return errors.New("nope")
	})
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
