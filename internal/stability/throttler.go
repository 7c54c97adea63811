package stability

import "time"

// throttler implements the fixed-window request counter described in §3:
// allowed while fewer than max_requests have been observed inside the
// current time_window; the window resets on the first request after
// time_window has elapsed since the window opened (lastRequest is stamped
// when a window opens, not on every request). Specified for completeness
// (§3); nothing reads the throttling_enabled flag, and the forwarder does
// not call this today (§9
// Open Question: "the throttler is wired in the registry but not invoked
// anywhere in the forwarder").
type throttler struct {
	maxRequests     int
	currentRequests int
	lastRequest     time.Time
	timeWindow      time.Duration
}

func newThrottler(limit int, window time.Duration) *throttler {
	return &throttler{
		maxRequests: limit,
		timeWindow:  window,
		lastRequest: time.Now(),
	}
}

// check reports whether a request is allowed under the current window and
// records the observation.
func (t *throttler) check() bool {
	now := time.Now()
	if now.Sub(t.lastRequest) < t.timeWindow {
		t.currentRequests++
		if t.currentRequests > t.maxRequests {
			return false
		}
	} else {
		t.currentRequests = 1
		t.lastRequest = now
	}
	return true
}
