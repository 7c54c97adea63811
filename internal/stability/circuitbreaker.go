package stability

import "time"

// defaultMaxTrips is the number of errors a route tolerates before its
// circuit opens, per §3/§4.B of the design.
const defaultMaxTrips uint16 = 10

// circuitBreaker tracks consecutive-since-reset errors for one route.
// Grounded in original_source/stability_patterns.rs's CircuitBreaker: the
// error_count is monotonic until an explicit reset, and there is no
// automatic half-open re-probe (§9, a known limitation).
type circuitBreaker struct {
	errorCount uint16
	maxTrips   uint16
	lastError  time.Time
	createdAt  time.Time
}

func newCircuitBreaker(maxTrips uint16) *circuitBreaker {
	now := time.Now()
	if maxTrips == 0 {
		maxTrips = defaultMaxTrips
	}
	return &circuitBreaker{
		maxTrips:  maxTrips,
		createdAt: now,
		lastError: now,
	}
}

// trip records a failure and returns whether the breaker is still closed
// afterwards.
func (cb *circuitBreaker) trip() bool {
	cb.errorCount++
	cb.lastError = time.Now()
	return cb.errorCount <= cb.maxTrips
}

// closed reports whether the breaker currently permits traffic.
func (cb *circuitBreaker) closed() bool {
	return cb.errorCount <= cb.maxTrips
}

func (cb *circuitBreaker) reset() {
	cb.errorCount = 0
}
