package gasketerrors

import "net/http"

// NewTLSConfigError wraps a certificate/key loading or parsing failure.
// Fatal: the caller shuts down the supervisor and exits non-zero.
func NewTLSConfigError(message string, err error) *GasketError {
	return &GasketError{
		Type:    TLSConfigError,
		Message: message,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// NewSpawnError wraps a child-process spawn failure. Fatal.
func NewSpawnError(message string, err error) *GasketError {
	return &GasketError{
		Type:    SpawnError,
		Message: message,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// NewRespawnCapExceeded reports the child exiting more times than the
// supervisor's respawn cap allows. Fatal.
func NewRespawnCapExceeded(attempts int) *GasketError {
	return &GasketError{
		Type:    RespawnCapExceeded,
		Message: "Process spawning too much, aborting gasket",
		Code:    http.StatusInternalServerError,
		Details: map[string]interface{}{
			"attempts": attempts,
		},
	}
}

// NewUpstreamTimeoutError reports a per-route upstream call that exceeded
// its current backoff timeout.
func NewUpstreamTimeoutError(route string, timeout string) *GasketError {
	return &GasketError{
		Type:    UpstreamTimeoutError,
		Message: "Backend Timeout: " + timeout,
		Code:    http.StatusRequestTimeout,
		Details: map[string]interface{}{
			"route":   route,
			"timeout": timeout,
		},
	}
}

// NewUpstreamTransportError reports a connection/transport failure talking
// to the backend.
func NewUpstreamTransportError(route string, err error) *GasketError {
	return &GasketError{
		Type:    UpstreamTransportError,
		Message: err.Error(),
		Code:    http.StatusInternalServerError,
		Details: map[string]interface{}{
			"route": route,
		},
		err: err,
	}
}

// NewCircuitOpenError reports that the route's breaker is open.
func NewCircuitOpenError(route string) *GasketError {
	return &GasketError{
		Type:    CircuitOpenError,
		Message: "Circuitbreaker for " + route + " is open",
		Code:    http.StatusInternalServerError,
		Details: map[string]interface{}{
			"route": route,
		},
	}
}

// NewInboundParseError wraps a malformed inbound request.
func NewInboundParseError(requestID string, err error) *GasketError {
	return &GasketError{
		Type:      InboundParseError,
		Message:   "Malformed request",
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}
