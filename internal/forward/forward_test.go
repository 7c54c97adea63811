package forward

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gasket/internal/stability"
)

func newEnv(method, path string) *Envelope {
	return &Envelope{
		Method: method,
		Path:   path,
		Header: http.Header{},
		PeerIP: "10.0.0.1",
	}
}

func TestForwardPlainRequestSucceeds(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hello", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("world"))
	}))
	defer backend.Close()

	registry := stability.NewRegistry(nil)
	f := NewForwarder(backend.URL, registry)

	res, err := f.Forward(context.Background(), newEnv(http.MethodGet, "/hello"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "world", string(res.Body))
	assert.False(t, res.Retryable)
	assert.NotEmpty(t, res.Header.Get("X-Gasket-Request-Id"))
}

func TestForwardStripsHopByHopHeadersAndStampsIdentity(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Connection"))
		assert.Equal(t, "10.0.0.1", r.Header.Get("X-Forwarded-For"))
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := stability.NewRegistry(nil)
	f := NewForwarder(backend.URL, registry)

	env := newEnv(http.MethodGet, "/x")
	env.Header.Set("Connection", "keep-alive")

	res, err := f.Forward(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestForwardReturnsCircuitOpenWithoutTouchingUpstream(t *testing.T) {
	called := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer backend.Close()

	registry := stability.NewRegistry(nil)
	registry.EnsureCB("/blocked", 1)
	registry.Trip("/blocked")
	registry.Trip("/blocked")
	require.False(t, registry.CBStatus("/blocked"))

	f := NewForwarder(backend.URL, registry)
	res, err := f.Forward(context.Background(), newEnv(http.MethodGet, "/blocked"))
	require.NoError(t, err)

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Contains(t, string(res.Body), "/blocked")
	assert.False(t, res.Retryable)
}

func TestForwardClassifiesUpstreamTimeoutAsRetryable408(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := stability.NewRegistry(nil)
	route := "/slow"
	registry.EnsureBackoff(route)

	f := NewForwarder(backend.URL, registry)
	env := newEnv(http.MethodGet, route)

	// The parent context's 10ms deadline is shorter than the registry's
	// ~100ms backoff timeout, so context.WithTimeout inside Forward
	// inherits the earlier of the two and the backend's 50ms sleep always
	// exceeds it.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := f.Forward(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestTimeout, res.StatusCode)
	assert.Contains(t, string(res.Body), "Backend Timeout")
	assert.True(t, res.Retryable)
	assert.True(t, registry.CBStatus(route), "timeout alone must not trip the breaker")
}

func TestForwardTripsBreakerOnTransportError(t *testing.T) {
	registry := stability.NewRegistry(nil)
	route := "/unreachable"
	registry.EnsureCB(route, 1)
	// With max_trips=1 one failure leaves the breaker closed; the trip the
	// forwarder records for the transport error below is the one that opens it.
	require.True(t, registry.Trip(route))

	// Port 1 is reserved and will refuse the connection immediately.
	f := NewForwarder("http://127.0.0.1:1", registry)
	res, err := f.Forward(context.Background(), newEnv(http.MethodGet, route))
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.True(t, res.Retryable)
	assert.False(t, registry.CBStatus(route))
}

func TestForwardPreservesQueryString(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a=1&b=2", r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	registry := stability.NewRegistry(nil)
	f := NewForwarder(backend.URL, registry)

	env := newEnv(http.MethodGet, "/q")
	env.Query = "a=1&b=2"

	_, err := f.Forward(context.Background(), env)
	require.NoError(t, err)
}
