// Package gasketerrors provides the structured error handling system for the
// Gasket sidecar. It includes typed errors, a JSON response writer for the
// transport-boundary cases that warrant a structured body, and a default
// zap logger used by packages that have no logger of their own to thread
// through.
//
// Most of the forwarder's per-request failure modes (§4.D of the design:
// circuit open, backend timeout, transport error) return plain-text bodies
// whose exact wording is part of the contract with operators scraping logs,
// so they are written directly by the forwarder rather than through this
// package. GasketError is for the remaining boundary: malformed inbound
// requests and fatal startup failures.
package gasketerrors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is used by packages that are not handed a *zap.Logger
// explicitly (e.g. package-level helpers called before a logger exists).
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger overrides DefaultLogger. A nil argument is a no-op so callers
// can't accidentally silence logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes a GasketError for client handling and metrics
// labeling.
type ErrorType string

const (
	// TLSConfigError: §4.A, fatal, certificate/key load or parse failure.
	TLSConfigError ErrorType = "tls_config_error"

	// SpawnError: §4.G, fatal, the child process could not be started.
	SpawnError ErrorType = "spawn_error"

	// RespawnCapExceeded: §4.G, fatal, the child exited more times than
	// the supervisor's cap allows.
	RespawnCapExceeded ErrorType = "respawn_cap_exceeded"

	// UpstreamTimeoutError: §4.D, recoverable, the backend did not
	// respond within the route's current backoff timeout.
	UpstreamTimeoutError ErrorType = "upstream_timeout"

	// UpstreamTransportError: §4.D, recoverable, the upstream connection
	// could not be established or broke mid-flight.
	UpstreamTransportError ErrorType = "upstream_transport_error"

	// CircuitOpenError: §4.D, synthetic, the route's breaker is open.
	CircuitOpenError ErrorType = "circuit_open"

	// InboundParseError: malformed inbound request, surfaced as 400.
	InboundParseError ErrorType = "inbound_parse_error"
)

// GasketError is the structured error type used across Gasket. It
// implements the error interface and serializes to JSON for the handful
// of responses that carry a structured body.
type GasketError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      int                    `json:"-"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`

	err error
}

func (e *GasketError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As chains.
func (e *GasketError) Unwrap() error {
	return e.err
}

// Is matches on Type only, ignoring message/details/request id.
func (e *GasketError) Is(target error) bool {
	t, ok := target.(*GasketError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError writes a GasketError as a JSON response with the error's
// status code.
func WriteError(w http.ResponseWriter, err *GasketError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	_ = json.NewEncoder(w).Encode(err)
}

// ErrorWithType is a drop-in replacement for http.Error that tags the
// response with a GasketError type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Gasket-Request-Id")
	WriteError(w, &GasketError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	})
}
