package forward

import (
	"context"
	"math/rand"
	"time"
)

const (
	retryBase       = 10 * time.Millisecond
	retryFactor     = 2
	maxRetryAttempt = 3
)

// RetryDriver wraps a Forwarder with the bounded retry schedule of §4.E:
// base 10ms, factor 2, jittered, at most 3 attempts, retrying only the
// forwarder's "retryable" outcomes. Each inbound request gets its own
// independent attempt sequence — concurrent requests to the same route are
// never coalesced onto a shared response, since Gasket forwards every
// request verbatim and does not cache (spec Non-goals).
type RetryDriver struct {
	forwarder *Forwarder
	enabled   bool
}

// NewRetryDriver wraps forwarder. enabled corresponds to the options'
// backoff_enabled flag (§6); when false, Do issues exactly one attempt.
func NewRetryDriver(forwarder *Forwarder, enabled bool) *RetryDriver {
	return &RetryDriver{forwarder: forwarder, enabled: enabled}
}

// Do runs env through the forwarder, retrying retryable outcomes per the
// §4.E schedule when enabled.
func (d *RetryDriver) Do(ctx context.Context, env *Envelope) (*Result, error) {
	if !d.enabled {
		return d.forwarder.Forward(ctx, env)
	}

	return d.attemptWithRetries(ctx, env)
}

func (d *RetryDriver) attemptWithRetries(ctx context.Context, env *Envelope) (*Result, error) {
	var result *Result
	var err error

	for attempt := 0; attempt < maxRetryAttempt; attempt++ {
		result, err = d.forwarder.Forward(ctx, env)
		if err != nil {
			return nil, err
		}
		if !result.Retryable {
			return result, nil
		}
		if attempt == maxRetryAttempt-1 {
			break
		}

		select {
		case <-ctx.Done():
			return result, nil
		case <-time.After(jitteredDelay(attempt)):
		}
	}

	return result, nil
}

// jitteredDelay computes the delay before retry attempt k (0-indexed):
// base * factor^k, plus up to 50% jitter.
func jitteredDelay(attempt int) time.Duration {
	backoff := retryBase
	for i := 0; i < attempt; i++ {
		backoff *= retryFactor
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
	return backoff + jitter
}
