// Package gasketlog constructs Gasket's process-wide *zap.Logger, selected
// by environment the way the teacher's cmd/hapax/main.go threads a logger
// through its constructors (though the teacher builds its logger inline;
// this package exists because Gasket's entry orchestrator, supervisor, and
// server all need the same instance before any config is loaded).
package gasketlog

import (
	"os"

	"go.uber.org/zap"
)

// New builds a production logger, or a development logger (human-readable,
// debug level) when GASKET_ENV=development.
func New() (*zap.Logger, error) {
	if os.Getenv("GASKET_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
