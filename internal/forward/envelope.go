// Package forward implements Gasket's request forwarder and retry driver
// (§4.D, §4.E): the component that turns an inbound RequestEnvelope into an
// upstream HTTP call against the supervised backend, shaping the outcome
// into a response the server frontend can write back to the client.
// Grounded in the teacher's server/provider.Manager.Execute (the
// timeout/circuit-breaker-gated upstream call) and original_source/proxy.rs
// (the Rust forward_request handler this replaces).
package forward

import "net/http"

// Envelope is the per-request record carried through the forwarder (§3
// RequestEnvelope): created on inbound parse, discarded after the response
// is written.
type Envelope struct {
	RequestID string
	Method    string
	Path      string
	Query     string
	Header    http.Header
	Body      []byte
	PeerIP    string
	MTLS      bool
}

// Result is the shaped outcome of a forward attempt: either an upstream
// response to relay, or a synthetic response (circuit-open, timeout,
// transport error) the forwarder manufactured itself.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Retryable reports whether §4.E should attempt this call again:
	// transport errors, upstream timeouts (the synthetic 408) and 5xx
	// responses from the upstream. Circuit-open results and upstream 2xx,
	// 3xx and 4xx responses are never retryable.
	Retryable bool
}
