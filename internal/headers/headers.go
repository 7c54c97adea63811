// Package headers implements Gasket's inbound/outbound header rewrite
// policy (§4.C): hop-by-hop pruning and identity stamping. Grounded in
// original_source/http_utils.rs's HOP_BY_HOP_HEADERS set and the
// X-Forwarded-For / X-Gasket-Request-Id / X-Gasket-mTLS-Active stamping it
// performs on every forwarded request.
package headers

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	xForwardedFor     = "X-Forwarded-For"
	xGasketRequestID  = "X-Gasket-Request-Id"
	xGasketMTLSActive = "X-Gasket-mTLS-Active"
)

// hopByHop lists the headers that apply only to a single transport hop and
// must never be forwarded (RFC 7230 §6.1), case-insensitively.
var hopByHop = []string{
	"connection",
	"proxy-connection",
	"keep-alive",
	"proxy-authenticate",
	"proxy-authorization",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
}

// pruneHopByHop removes every hop-by-hop header from h. http.Header keys
// are already canonicalized by net/textproto, so a single
// CanonicalHeaderKey-formed delete per name is sufficient.
func pruneHopByHop(h http.Header) {
	for _, name := range hopByHop {
		h.Del(name)
	}
}

// NewRequestID generates a lowercase-hyphenated 128-bit request identifier,
// per §4.C point 3.
func NewRequestID() string {
	return uuid.New().String()
}

// Inbound rewrites the headers of an inbound request before it is
// forwarded upstream. peerIP is the client's bare IP (port already
// stripped) or "" if unknown. It returns the request ID stamped onto the
// outbound request, so the same value can be echoed back to the client
// by Outbound.
func Inbound(h http.Header, peerIP string, mtlsEnabled bool) (requestID string) {
	pruneHopByHop(h)

	if peerIP != "" {
		h.Set(xForwardedFor, peerIP)
	}

	requestID = NewRequestID()
	h.Set(xGasketRequestID, requestID)

	mtls := "false"
	if mtlsEnabled {
		mtls = "true"
	}
	h.Set(xGasketMTLSActive, mtls)

	return requestID
}

// Outbound rewrites the headers of the upstream response before it is
// written back to the client: hop-by-hop headers are dropped and the
// request ID is stamped so the client can correlate its request with
// Gasket's logs, satisfying the round-trip identity invariant in §8.
func Outbound(h http.Header, requestID string) {
	pruneHopByHop(h)
	h.Set(xGasketRequestID, requestID)
}
