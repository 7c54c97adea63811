// Package server implements Gasket's HTTP frontend (§4.F): three
// constructors for the plain/TLS/mTLS server variants, each routing every
// method and path to the forwarder (via the retry driver when enabled).
// Grounded in the teacher's server/server.go (chi-routed *http.Server
// construction, graceful Start/shutdown) and server/middleware package
// layout, adapted from an LLM completion endpoint to a catch-all reverse
// proxy. OS signal handling is deliberately never installed here
// (no signal.Notify call anywhere in this package) — the supervisor owns
// it exclusively, per §4.F.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teilomillet/gasket/config"
	"github.com/teilomillet/gasket/internal/forward"
	"github.com/teilomillet/gasket/internal/gasketerrors"
	"github.com/teilomillet/gasket/internal/stability"
	"github.com/teilomillet/gasket/internal/tlsconfig"
)

// Server wraps the standard library's http.Server the way the teacher's
// Server type does, minus config hot-reload: Gasket's options are
// effectively read-only after startup (§5 Shared resource policy).
type Server struct {
	httpServer *http.Server
	registry   *stability.Registry
	logger     *zap.Logger
}

// NewPlainServer builds the plain-HTTP variant (§4.F): no TLS.
func NewPlainServer(opts *config.GasketOptions, logger *zap.Logger) (*Server, error) {
	return newServer(opts, logger, nil)
}

// NewTLSServer builds the TLS-terminating variant (§4.F).
func NewTLSServer(opts *config.GasketOptions, logger *zap.Logger) (*Server, error) {
	tlsCfg, err := tlsconfig.NewTLSAcceptor(opts.PrivateKeyPath, opts.CertificateChainPath)
	if err != nil {
		return nil, err
	}
	return newServer(opts, logger, tlsCfg)
}

// NewMTLSServer builds the mTLS-terminating variant (§4.F).
func NewMTLSServer(opts *config.GasketOptions, logger *zap.Logger) (*Server, error) {
	tlsCfg, err := tlsconfig.NewMTLSAcceptor(opts.PrivateKeyPath, opts.CertificateChainPath, opts.ClientCAPath)
	if err != nil {
		return nil, err
	}
	return newServer(opts, logger, tlsCfg)
}

func newServer(opts *config.GasketOptions, logger *zap.Logger, tlsCfg *tls.Config) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promRegistry := prometheus.NewRegistry()
	registry := stability.NewRegistry(promRegistry)

	backendOrigin := fmt.Sprintf("http://127.0.0.1:%d", opts.BackendPort)
	forwarder := forward.NewForwarder(backendOrigin, registry)
	retryDriver := forward.NewRetryDriver(forwarder, opts.Backoff)

	router := chi.NewRouter()
	router.Use(accessLog(logger))
	router.Use(gasketerrors.PanicRecovery(logger))
	router.Use(workerPool(workerPoolSize))

	router.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	router.HandleFunc("/*", forwardingHandler(retryDriver, logger, opts.MTLS))

	httpServer := &http.Server{
		Addr:      fmt.Sprintf("127.0.0.1:%d", opts.Port),
		Handler:   router,
		TLSConfig: tlsCfg,
	}

	return &Server{httpServer: httpServer, registry: registry, logger: logger}, nil
}

// forwardingHandler adapts an inbound *http.Request into a forward.Envelope
// and writes back whatever forward.Result the retry driver produces. Body
// buffering is intentional (§4.D point 7): streaming is a non-goal.
func forwardingHandler(driver *forward.RetryDriver, logger *zap.Logger, mtlsEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			gasketerrors.WriteError(w, gasketerrors.NewInboundParseError("", err))
			return
		}
		defer r.Body.Close()

		env := &forward.Envelope{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
			PeerIP: peerIP(r.RemoteAddr),
			MTLS:   mtlsEnabled,
		}

		res, err := driver.Do(r.Context(), env)
		if err != nil {
			logger.Error("forward failed", zap.Error(err))
			if ge, ok := err.(*gasketerrors.GasketError); ok {
				gasketerrors.WriteError(w, ge)
			} else {
				http.Error(w, err.Error(), http.StatusBadGateway)
			}
			return
		}

		for name, values := range res.Header {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(res.StatusCode)
		_, _ = w.Write(res.Body)
	}
}

// peerIP strips the port from a RemoteAddr the way the teacher's
// middleware/ratelimit.go does for its per-IP limiter key.
func peerIP(remoteAddr string) string {
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}

// Start begins serving HTTP(S) requests and blocks until ctx is cancelled,
// then shuts down gracefully: stop accepting, let in-flight requests
// complete (§5 Cancellation and timeouts), and only then return.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		var err error
		if s.httpServer.TLSConfig != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	}
}
