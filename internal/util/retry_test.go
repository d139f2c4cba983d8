// ABOUTME: Tests for retry utilities including exponential backoff
// ABOUTME: Validates backoff bounds, jitter, and the retry loop's stop conditions
package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{"zero attempt", time.Second, 0, 0, 0},
		{"negative attempt", time.Second, -100, 0, 0},
		{"zero base", 0, 3, 0, 0},
		{"first attempt", 100 * time.Millisecond, 1, 150 * time.Millisecond, 250 * time.Millisecond},
		{"third attempt", 100 * time.Millisecond, 3, 600 * time.Millisecond, time.Second},
		{"capped", time.Second, 10, 22500 * time.Millisecond, 37500 * time.Millisecond},
		{"huge attempt", time.Millisecond, 100, 22500 * time.Millisecond, 37500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateBackoff(tt.base, tt.attempt)
			if got < tt.min || got > tt.max {
				t.Errorf("expected backoff between %v and %v, got %v", tt.min, tt.max, got)
			}
		})
	}
}

func TestCalculateBackoff_JitterVaries(t *testing.T) {
	first := CalculateBackoff(time.Second, 2)
	for i := 0; i < 100; i++ {
		if CalculateBackoff(time.Second, 2) != first {
			return
		}
	}
	t.Error("jitter should produce varying results, but all 100 samples were identical")
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), Policy{
		MaxRetries: 3,
		BaseDelay:  time.Microsecond,
		OnRetry:    func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}, func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("unexpected retry attempts: %v", retried)
	}
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	busy := errors.New("busy")
	err := Do(context.Background(), Policy{MaxRetries: 2, BaseDelay: time.Microsecond}, func() error {
		calls++
		return busy
	})
	if !errors.Is(err, busy) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 1 call plus 2 retries, got %d", calls)
	}
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	fatal := errors.New("corrupt")
	err := Do(context.Background(), Policy{
		MaxRetries: 5,
		BaseDelay:  time.Microsecond,
		Retryable:  func(err error) bool { return !errors.Is(err, fatal) },
	}, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestDo_CanceledContextWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxRetries: 3, BaseDelay: time.Minute}, func() error {
		calls++
		cancel()
		return errors.New("busy")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}
