package stability

import "time"

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 60 * time.Second
	maxBackoffReqs = 50
)

// exponentialBackoff tracks the per-route retry timeout schedule described
// in §3/§4.B: 100ms, 120ms, 160ms, 240ms, ... saturating at 60s. Grounded
// in original_source/stability_patterns.rs's ExponentialBackoff.next(),
// generalized to clamp rather than overflow for very large attempt counts
// (spec §4.B: "attempts >= 63 must not overflow").
type exponentialBackoff struct {
	currentTimeout time.Duration
	requests       int
}

func newExponentialBackoff() *exponentialBackoff {
	return &exponentialBackoff{currentTimeout: initialBackoff}
}

// next advances the schedule and returns the new timeout.
func (b *exponentialBackoff) next() time.Duration {
	if b.requests == 0 {
		b.currentTimeout = initialBackoff
	} else {
		b.currentTimeout = clampAdd(b.currentTimeout, incrementFor(b.requests))
	}
	b.requests++
	return b.currentTimeout
}

// nextWithReset advances the schedule like next, but resets back to the
// initial timeout once maxBackoffReqs attempts have accumulated. Preserved
// per §9's Open Question ("no caller uses it... preserve the operation for
// completeness") — intentionally not called from the forwarder.
func (b *exponentialBackoff) nextWithReset() time.Duration {
	if b.requests >= maxBackoffReqs {
		b.reset()
	}
	return b.next()
}

// current returns the timeout without advancing the schedule.
func (b *exponentialBackoff) current() time.Duration {
	return b.currentTimeout
}

func (b *exponentialBackoff) reset() {
	b.requests = 0
	b.currentTimeout = initialBackoff
}

// incrementFor computes 10*2^k milliseconds in an integer-safe way,
// clamping instead of overflowing for large k (spec §4.B).
func incrementFor(k int) time.Duration {
	const base = 10 * time.Millisecond
	if k < 0 {
		return base
	}
	// 2^k milliseconds overflows int64 well before k reaches 53; anything
	// beyond that is clamped to the max timeout regardless.
	if k >= 53 {
		return maxBackoff
	}
	shifted := int64(1) << uint(k)
	inc := time.Duration(shifted) * base
	if inc < 0 || inc > maxBackoff {
		return maxBackoff
	}
	return inc
}

func clampAdd(current, inc time.Duration) time.Duration {
	sum := current + inc
	if sum < current || sum > maxBackoff {
		return maxBackoff
	}
	return sum
}
