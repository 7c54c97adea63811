package gasketerrors

import (
	"errors"
)

// RequestIDKey is the zap field name under which log lines carry the
// request ID of the inbound request an error or panic belongs to.
const RequestIDKey = "request_id"

// As wraps errors.As for callers that don't want to import "errors"
// alongside this package.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
