// Package retry implements the fixed backoff schedule the Adapter wraps
// every outbound model call in.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Schedule is the fixed delay before each retry attempt (spec §4.3): up to
// 4 attempts total, doubling from 1s.
var Schedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// MaxAttempts is the initial attempt plus len(Schedule) retries.
const MaxAttempts = 1 + 3

// nonRetriableMarkers are HTTP status substrings that abort retrying
// immediately (spec §4.3).
var nonRetriableMarkers = []string{"401", "403", "404"}

// Result reports how many attempts a Do call took.
type Result struct {
	Attempts int
}

// Do runs fn up to MaxAttempts times, sleeping the fixed Schedule between
// attempts, until it returns a nil error, a non-retriable error, or ctx is
// done. A non-retriable error is returned as-is; cancellation during a sleep
// returns ctx.Err(); once every attempt fails, the last error is returned
// wrapped with the attempt count.
func Do(ctx context.Context, logger *logrus.Entry, fn func(ctx context.Context) error) (Result, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return Result{Attempts: attempt}, nil
		}

		if IsNonRetriable(lastErr) {
			logger.WithFields(logrus.Fields{"attempt": attempt, "reason": "non-retriable"}).
				Warn("retry: aborting, non-retriable error")
			return Result{Attempts: attempt}, lastErr
		}

		if attempt == MaxAttempts {
			break
		}

		delay := Schedule[attempt-1]
		logger.WithFields(logrus.Fields{"attempt": attempt, "delay": delay, "reason": lastErr.Error()}).
			Warn("retry: scheduling retry")

		select {
		case <-ctx.Done():
			return Result{Attempts: attempt}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return Result{Attempts: MaxAttempts}, fmt.Errorf("all %d attempts failed: %w", MaxAttempts, lastErr)
}

// IsNonRetriable reports whether err's message carries one of the
// non-retriable HTTP status markers (401/403/404).
func IsNonRetriable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range nonRetriableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
