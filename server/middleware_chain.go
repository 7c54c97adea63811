package server

import (
	"net/http"
)

// workerPoolSize is the fixed parallelism for inbound HTTP serving (§5).
const workerPoolSize = 12

// workerPool bounds concurrent handler execution to workerPoolSize, since
// net/http has no native "worker count" knob (the teacher instead bounds
// concurrency with config-driven Server.ReadTimeout/WriteTimeout; Gasket
// needs an explicit admission gate to match the spec's worker count).
// Requests beyond the pool wait for a free slot rather than being rejected.
func workerPool(size int) func(http.Handler) http.Handler {
	sem := make(chan struct{}, size)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sem <- struct{}{}
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		})
	}
}
