package forward

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/teilomillet/gasket/internal/gasketerrors"
	"github.com/teilomillet/gasket/internal/headers"
	"github.com/teilomillet/gasket/internal/stability"
	"go.uber.org/zap"
)

// Forwarder implements §4.D: it turns an Envelope into an upstream call
// against a fixed backend origin, consulting the stability registry for
// circuit-breaker and backoff state along the way.
type Forwarder struct {
	backendOrigin string // e.g. "http://127.0.0.1:3001"
	registry      *stability.Registry
	client        *http.Client
}

// NewForwarder builds a Forwarder targeting backendOrigin (scheme://host:port,
// no trailing slash). The supplied registry is shared process-wide.
func NewForwarder(backendOrigin string, registry *stability.Registry) *Forwarder {
	// Decompression disabled per §4.D step 3: otherwise net/http adds
	// Accept-Encoding: gzip when the inbound request carries none and
	// transparently decompresses the reply, so bodies would not pass
	// through byte for byte.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true
	return &Forwarder{
		backendOrigin: backendOrigin,
		registry:      registry,
		client:        &http.Client{Transport: transport},
	}
}

// Forward implements §4.D's six numbered steps. ctx governs cancellation of
// the whole attempt; the per-request timeout from the stability registry is
// applied as a derived, shorter deadline.
func (f *Forwarder) Forward(ctx context.Context, env *Envelope) (*Result, error) {
	route := env.Path

	// Step 1: circuit check. No I/O, no lock held past this call.
	if !f.registry.CBStatus(route) {
		return &Result{
			StatusCode: http.StatusServiceUnavailable,
			Header:     http.Header{},
			Body:       []byte(fmt.Sprintf("Circuitbreaker for %s is open", route)),
			Retryable:  false,
		}, nil
	}

	// Step 2: backoff lookup. The returned timeout is this attempt's
	// upstream deadline.
	f.registry.EnsureBackoff(route)
	timeout := f.registry.CurrentTimeout(route)

	// Step 3: build the upstream URL, host/port swapped, path and query
	// verbatim.
	upstreamURL, err := f.buildUpstreamURL(env)
	if err != nil {
		return nil, gasketerrors.NewInboundParseError(env.RequestID, err)
	}

	// Step 4: header policy.
	requestID := headers.Inbound(env.Header, env.PeerIP, env.MTLS)
	env.RequestID = requestID

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, env.Method, upstreamURL.String(), newBodyReader(env.Body))
	if err != nil {
		return nil, gasketerrors.NewInboundParseError(requestID, err)
	}
	req.Header = env.Header.Clone()

	// Step 5: issue the upstream call.
	resp, err := f.client.Do(req)
	if err != nil {
		return f.classifyError(route, requestID, callCtx, err)
	}
	defer resp.Body.Close()

	// Step 6/7: success path, fully buffered.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return f.classifyError(route, requestID, callCtx, err)
	}

	respHeader := resp.Header.Clone()
	headers.Outbound(respHeader, requestID)

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     respHeader,
		Body:       body,
		Retryable:  isRetryableStatus(resp.StatusCode),
	}, nil
}

// classifyError distinguishes a timed-out attempt from a transport error,
// per §4.D step 6, and advances the appropriate registry state. Neither
// branch holds a registry lock during the classification itself: Trip and
// NextBackoff each acquire and release their own lock internally.
func (f *Forwarder) classifyError(route, requestID string, callCtx context.Context, callErr error) (*Result, error) {
	if callCtx.Err() == context.DeadlineExceeded {
		next := f.registry.NextBackoff(route)
		h := http.Header{}
		headers.Outbound(h, requestID)
		return &Result{
			StatusCode: http.StatusRequestTimeout,
			Header:     h,
			Body:       []byte(fmt.Sprintf("Backend Timeout: %s", next)),
			Retryable:  true,
		}, nil
	}

	stillClosed := f.registry.Trip(route)
	if !stillClosed {
		gasketerrors.DefaultLogger.Warn("circuit breaker opened", zap.String("route", route))
	}
	h := http.Header{}
	headers.Outbound(h, requestID)
	return &Result{
		StatusCode: http.StatusInternalServerError,
		Header:     h,
		Body:       []byte(callErr.Error()),
		Retryable:  true,
	}, nil
}

func (f *Forwarder) buildUpstreamURL(env *Envelope) (*url.URL, error) {
	base, err := url.Parse(f.backendOrigin)
	if err != nil {
		return nil, err
	}
	base.Path = env.Path
	base.RawQuery = env.Query
	return base, nil
}

// isRetryableStatus reports whether §4.E should retry a response that came
// back from the real upstream: any 5xx is retried, while 2xx, 3xx and 4xx
// responses are returned as-is. Timeouts and transport errors never reach
// this check; classifyError marks those results retryable itself.
func isRetryableStatus(status int) bool {
	return status >= 500
}

func newBodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}
