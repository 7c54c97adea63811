// Command gasket is the entry orchestrator (§4.H): parse flags, read PORT,
// start the supervisor, select the §4.F server variant, await it, close
// the supervisor, and return the appropriate exit code (§6/§7). Grounded
// in the teacher's cmd/hapax/main.go (flag parsing, signal-driven context
// cancellation, fatal startup error handling).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/teilomillet/gasket/config"
	"github.com/teilomillet/gasket/internal/gasketlog"
	"github.com/teilomillet/gasket/internal/supervisor"
	"github.com/teilomillet/gasket/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger, err := gasketlog.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return -1
	}
	defer logger.Sync()

	opts, err := config.ParseFlags(args)
	if err != nil {
		logger.Error("failed to parse flags", zap.Error(err))
		return -1
	}

	sup := supervisor.New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	closeSupervisor, err := sup.Start(ctx, opts.Execute, opts.BackendPort)
	if err != nil {
		logger.Error("failed to start supervisor", zap.Error(err))
		return -1
	}

	srv, err := newServerForMode(opts, logger)
	if err != nil {
		logger.Error("failed to build server", zap.Error(err))
		closeSupervisor()
		return -1
	}

	logger.Info("gasket starting",
		zap.Int("port", opts.Port),
		zap.Int("backend_port", opts.BackendPort))

	serveErr := srv.Start(ctx)
	closeSupervisor()

	if serveErr != nil {
		logger.Error("server error", zap.Error(serveErr))
		return -1
	}
	return 0
}

func newServerForMode(opts *config.GasketOptions, logger *zap.Logger) (*server.Server, error) {
	switch opts.Mode() {
	case config.ModeMTLS:
		return server.NewMTLSServer(opts, logger)
	case config.ModeTLS:
		return server.NewTLSServer(opts, logger)
	default:
		return server.NewPlainServer(opts, logger)
	}
}
