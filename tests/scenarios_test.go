// Package tests holds Gasket's end-to-end scenario tests for spec §8's
// numbered scenarios 1 to 5 (scenario 6, the respawn cap, is not covered
// here), each driving a real *server.Server
// against a stub backend the way the teacher's tests/circuitbreaker_test.go
// drives a real circuit breaker against synthetic failures.
package tests

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teilomillet/gasket/config"
	"github.com/teilomillet/gasket/server"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startGasket(t *testing.T, backendPort int) (gasketPort int, shutdown func()) {
	t.Helper()
	opts := &config.GasketOptions{Port: freePort(t), BackendPort: backendPort}
	srv, err := server.NewPlainServer(opts, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Start(ctx)
		close(done)
	}()

	for i := 0; i < 50; i++ {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(opts.Port), 50*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	return opts.Port, func() {
		cancel()
		<-done
	}
}

// Scenario 1: Plain forward.
func TestScenarioPlainForward(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer backend.Close()

	port, shutdown := startGasket(t, portOf(t, backend.URL))
	defer shutdown()

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/hello")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	id := resp.Header.Get("X-Gasket-Request-Id")
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

// Scenario 2: Header hygiene.
func TestScenarioHeaderHygiene(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Connection"))
		assert.Empty(t, r.Header.Get("Transfer-Encoding"))
		assert.Equal(t, "v", r.Header.Get("X-Custom"))
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	port, shutdown := startGasket(t, portOf(t, backend.URL))
	defer shutdown()

	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:"+strconv.Itoa(port)+"/x", nil)
	require.NoError(t, err)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Custom", "v")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Scenario 5: Backend timeout.
func TestScenarioBackendTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	port, shutdown := startGasket(t, portOf(t, backend.URL))
	defer shutdown()

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/slow")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
}

// Scenario 3: Backoff growth. Three sequential requests against a backend
// that always sleeps past the current per-route timeout drive the
// exponential schedule through 100ms, 120ms, 160ms.
func TestScenarioBackoffGrowth(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	port, shutdown := startGasket(t, portOf(t, backend.URL))
	defer shutdown()

	client := http.Client{Timeout: 1500 * time.Millisecond}
	wantBodies := []string{"Backend Timeout: 100ms", "Backend Timeout: 120ms", "Backend Timeout: 160ms"}

	for _, want := range wantBodies {
		resp, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/slow-route")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
		assert.Equal(t, want, string(body))
	}
}

// Scenario 4: Circuit open. After enough transport failures to exceed the
// route's default max_trips, the breaker opens and further requests are
// rejected locally without attempting the upstream call.
func TestScenarioCircuitOpen(t *testing.T) {
	// Port 1 is a reserved port nothing listens on; connecting to it fails
	// fast with a transport error rather than timing out.
	port, shutdown := startGasket(t, 1)
	defer shutdown()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/flaky-route"

	var last *http.Response
	for i := 0; i < 11; i++ {
		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		last = resp
	}
	assert.Equal(t, http.StatusInternalServerError, last.StatusCode)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Circuitbreaker for /flaky-route is open", string(body))
}

func portOf(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}
