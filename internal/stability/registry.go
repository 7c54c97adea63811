// Package stability implements Gasket's per-route stability-pattern
// registry: circuit breakers, exponential backoffs, and throttlers, keyed
// by RouteKey (the inbound request path) and shared across concurrent
// requests for the lifetime of the process.
//
// Grounded in original_source/stability_patterns.rs (the Rust
// StabilityPatterns type, itself a single mutex-guarded HashMap per
// pattern) and generalized per §9 of the design notes: each map uses its
// own sync.RWMutex and a double-checked get-or-create so that two
// concurrent writers racing on an unseen route can't clobber each other's
// freshly inserted entry.
package stability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouteKey identifies a route for stability-pattern purposes: the inbound
// request's URL path, query excluded (§3).
type RouteKey = string

// Registry is the process-wide, thread-safe home for every route's
// circuit breaker, backoff, and throttler state.
type Registry struct {
	cbMu sync.RWMutex
	cbs  map[RouteKey]*circuitBreaker

	backoffMu sync.RWMutex
	backoffs  map[RouteKey]*exponentialBackoff

	throttleMu sync.RWMutex
	throttlers map[RouteKey]*throttler

	metrics *registryMetrics
}

// NewRegistry creates an empty registry. registry may be nil, in which case
// metrics are not exported (mirrors the teacher's TestMode convention).
func NewRegistry(registry *prometheus.Registry) *Registry {
	return &Registry{
		cbs:        make(map[RouteKey]*circuitBreaker),
		backoffs:   make(map[RouteKey]*exponentialBackoff),
		throttlers: make(map[RouteKey]*throttler),
		metrics:    newRegistryMetrics(registry),
	}
}

// --- circuit breaker surface -------------------------------------------------

// EnsureCB creates a circuit breaker for route with maxTrips if one does not
// already exist. A maxTrips of 0 uses the default of 10.
func (r *Registry) EnsureCB(route RouteKey, maxTrips uint16) {
	r.getOrCreateCB(route, maxTrips)
}

// Trip records a failure for route's breaker (auto-creating it with the
// default max_trips if unseen) and returns whether the breaker is still
// closed afterwards.
func (r *Registry) Trip(route RouteKey) bool {
	cb := r.getOrCreateCB(route, defaultMaxTrips)
	r.cbMu.Lock()
	stillClosed := cb.trip()
	r.cbMu.Unlock()
	if r.metrics != nil {
		r.metrics.observeTrip(route, stillClosed)
	}
	return stillClosed
}

// CBStatus reports whether route's breaker is closed (auto-creating it
// with the default max_trips if unseen).
func (r *Registry) CBStatus(route RouteKey) bool {
	cb := r.getOrCreateCB(route, defaultMaxTrips)
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	return cb.closed()
}

// ResetCB clears route's error count. A no-op if the route has no breaker.
func (r *Registry) ResetCB(route RouteKey) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	if cb, ok := r.cbs[route]; ok {
		cb.reset()
		if r.metrics != nil {
			r.metrics.observeState(route, true)
		}
	}
}

func (r *Registry) getOrCreateCB(route RouteKey, maxTrips uint16) *circuitBreaker {
	r.cbMu.RLock()
	cb, ok := r.cbs[route]
	r.cbMu.RUnlock()
	if ok {
		return cb
	}

	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	if cb, ok = r.cbs[route]; ok {
		return cb
	}
	cb = newCircuitBreaker(maxTrips)
	r.cbs[route] = cb
	return cb
}

// --- exponential backoff surface --------------------------------------------

// fallbackBackoff is returned by NextBackoff when a route's entry does not
// exist and the caller did not pre-create one. Per §4.B this must stay at
// 5s. The forwarder's http.Client sets no timeout of its own; each
// attempt's deadline comes from CurrentTimeout.
const fallbackBackoff = 5 * time.Second

// EnsureBackoff creates a backoff entry for route if one does not already
// exist.
func (r *Registry) EnsureBackoff(route RouteKey) {
	r.getOrCreateBackoff(route)
}

// NextBackoff advances route's backoff schedule and returns the new
// timeout.
func (r *Registry) NextBackoff(route RouteKey) time.Duration {
	r.backoffMu.RLock()
	b, ok := r.backoffs[route]
	r.backoffMu.RUnlock()
	if !ok {
		return fallbackBackoff
	}
	r.backoffMu.Lock()
	defer r.backoffMu.Unlock()
	d := b.next()
	if r.metrics != nil {
		r.metrics.observeBackoff(route, d)
	}
	return d
}

// CurrentTimeout returns route's current backoff timeout without advancing
// the schedule, auto-creating the entry if unseen.
func (r *Registry) CurrentTimeout(route RouteKey) time.Duration {
	b := r.getOrCreateBackoff(route)
	r.backoffMu.RLock()
	defer r.backoffMu.RUnlock()
	return b.current()
}

// ResetBackoff resets route's backoff schedule. A no-op if unseen.
func (r *Registry) ResetBackoff(route RouteKey) {
	r.backoffMu.Lock()
	defer r.backoffMu.Unlock()
	if b, ok := r.backoffs[route]; ok {
		b.reset()
	}
}

// NextBackoffWithReset advances route's backoff like NextBackoff, but
// resets the schedule after max_requests attempts. Preserved for
// completeness per §9; no caller invokes this from the forwarding path.
func (r *Registry) NextBackoffWithReset(route RouteKey) time.Duration {
	b := r.getOrCreateBackoff(route)
	r.backoffMu.Lock()
	defer r.backoffMu.Unlock()
	return b.nextWithReset()
}

func (r *Registry) getOrCreateBackoff(route RouteKey) *exponentialBackoff {
	r.backoffMu.RLock()
	b, ok := r.backoffs[route]
	r.backoffMu.RUnlock()
	if ok {
		return b
	}

	r.backoffMu.Lock()
	defer r.backoffMu.Unlock()
	if b, ok = r.backoffs[route]; ok {
		return b
	}
	b = newExponentialBackoff()
	r.backoffs[route] = b
	return b
}

// --- throttler surface -------------------------------------------------------

// EnsureThrottler creates a throttler for route with the given limit and
// window if one does not already exist.
func (r *Registry) EnsureThrottler(route RouteKey, limit int, window time.Duration) {
	r.getOrCreateThrottler(route, limit, window)
}

// Throttle reports whether route is currently allowed to proceed,
// auto-creating a throttler with a 1-request/1-second default if unseen.
func (r *Registry) Throttle(route RouteKey) bool {
	t := r.getOrCreateThrottler(route, 1, time.Second)
	r.throttleMu.Lock()
	defer r.throttleMu.Unlock()
	return t.check()
}

func (r *Registry) getOrCreateThrottler(route RouteKey, limit int, window time.Duration) *throttler {
	r.throttleMu.RLock()
	t, ok := r.throttlers[route]
	r.throttleMu.RUnlock()
	if ok {
		return t
	}

	r.throttleMu.Lock()
	defer r.throttleMu.Unlock()
	if t, ok = r.throttlers[route]; ok {
		return t
	}
	t = newThrottler(limit, window)
	r.throttlers[route] = t
	return t
}
