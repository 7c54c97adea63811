package gasketerrors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// PanicRecovery wraps an http.Handler and recovers panics raised while
// forwarding a request, logging the stack trace and responding 500 instead
// of letting the connection die without a response.
func PanicRecovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					requestID := r.Header.Get("X-Gasket-Request-Id")
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stacktrace", stack),
						zap.String(RequestIDKey, requestID),
					)

					WriteError(w, &GasketError{
						Type:      InboundParseError,
						Message:   "internal server error",
						Code:      http.StatusInternalServerError,
						RequestID: requestID,
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs a GasketError (or any error) with its context.
func LogError(logger *zap.Logger, err error, requestID string) {
	if gerr, ok := err.(*GasketError); ok {
		logger.Error("request error",
			zap.String("error_type", string(gerr.Type)),
			zap.String("message", gerr.Message),
			zap.Int("code", gerr.Code),
			zap.String(RequestIDKey, requestID),
			zap.Any("details", gerr.Details),
		)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String(RequestIDKey, requestID),
	)
}
