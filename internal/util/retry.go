// ABOUTME: Retry utilities with exponential backoff and jitter
// ABOUTME: Shared by the key-value store open path and its transaction retries
package util

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// MaxBackoff bounds a single wait between attempts.
const MaxBackoff = 30 * time.Second

// CalculateBackoff returns exponential backoff with jitter.
// Base delay is doubled each attempt, with random jitter up to 25%.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > MaxBackoff || backoff <= 0 {
		backoff = MaxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2+1)) - backoff/4
	return backoff + jitter
}

// Policy says how often and how patiently to retry.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// jitterBackOff feeds CalculateBackoff into the backoff package.
type jitterBackOff struct {
	base    time.Duration
	attempt int
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	b.attempt++
	return CalculateBackoff(b.base, b.attempt)
}

func (b *jitterBackOff) Reset() { b.attempt = 0 }

// Do runs fn until it succeeds, returns a non-retryable error, or the
// retries run out. The last error from fn is returned; a canceled context
// wins over it while waiting.
func Do(ctx context.Context, p Policy, fn func() error) error {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(&jitterBackOff{base: p.BaseDelay}),
		backoff.WithMaxTries(uint(p.MaxRetries) + 1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			attempt++
			if p.OnRetry != nil {
				p.OnRetry(attempt, delay, err)
			}
		}),
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
