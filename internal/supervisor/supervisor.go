// Package supervisor implements Gasket's process supervisor (§4.G): it
// spawns the configured backend command, republishes its PID for signal
// forwarding, and respawns it up to a fixed cap on exit. Grounded in
// original_source/process_manager.rs's spawn_process (a dedicated OS
// thread running a spawn-wait-respawn loop) and the teacher's
// cmd/hapax/main.go signal-handling goroutine
// (signal.Notify + context cancellation), generalized from the Rust's
// hardcoded single-retry cap to this package's maxSpawns of 5.
package supervisor

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// state names the supervisor's place in the §4.G state machine. It exists
// for logging/diagnostics; callers only ever see Start's close() handle.
type state int32

const (
	stateIdle state = iota
	stateRunning
	stateRespawning
	stateAborting
	stateTerminating
)

const (
	maxSpawns    = 5
	cleanupSleep = time.Second
)

// Supervisor owns the lifecycle of one backend child process.
type Supervisor struct {
	logger *zap.Logger

	pidCh chan int // capacity 10, per §4.G point 3

	currentPID int32 // atomic; 0 when no child is alive
	state      int32 // atomic state

	exitCh chan exitReport // reaper -> spawn loop, one in flight at a time

	sigCh chan os.Signal
	done  chan struct{}
}

type exitReport struct {
	pid       int
	status    unix.WaitStatus
	signalled bool
}

// New constructs a Supervisor. logger may be nil, in which case a no-op
// logger is used.
func New(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		logger: logger,
		pidCh:  make(chan int, 10),
		exitCh: make(chan exitReport, 1),
		sigCh:  make(chan os.Signal, 1),
		done:   make(chan struct{}),
	}
}

// Start parses cmd by whitespace and spawns it with PORT=<backendPort> set
// in its environment, per §4.G point 1. If cmd is empty the supervisor is
// inert: no process is spawned, but the signal-handling worker is still
// installed, matching "If cmd is empty, the supervisor is inert... signal
// worker still installed."
//
// Start returns immediately; the spawn-wait-respawn loop and the signal
// worker run in background goroutines until the returned close() is
// called. The spawn loop never calls cmd.Wait: it blocks on a channel
// until the SIGCHLD handler reaps its child with a non-blocking wait4 and
// reports the exit, so its goroutine is parked by the Go scheduler and
// ties up no OS thread while the child runs.
func (s *Supervisor) Start(ctx context.Context, cmdline string, backendPort int) (close func(), err error) {
	signal.Notify(s.sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGCHLD)

	go s.signalLoop()

	fields := strings.Fields(cmdline)
	if len(fields) > 0 {
		atomic.StoreInt32((*int32)(&s.state), int32(stateRunning))
		go s.spawnLoop(ctx, fields, backendPort)
	}

	closeFn := func() {
		signal.Stop(s.sigCh)
		close(s.done)
	}
	return closeFn, nil
}

func (s *Supervisor) spawnLoop(ctx context.Context, fields []string, backendPort int) {
	respawnCounter := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		cmd := exec.Command(fields[0], fields[1:]...)
		cmd.Env = append(os.Environ(), portEnv(backendPort))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		s.logger.Info("spawning backend", zap.String("cmd", fields[0]))
		if err := cmd.Start(); err != nil {
			s.logger.Error("failed to start backend", zap.Error(err))
			s.abort(respawnCounter)
			return
		}

		pid := cmd.Process.Pid
		atomic.StoreInt32(&s.currentPID, int32(pid))
		select {
		case s.pidCh <- pid:
		default:
			// Channel full (capacity 10): drop rather than block the
			// spawn loop, matching the bounded-channel's purpose as a
			// best-effort publication point.
		}

		exit := s.waitForExit(pid)
		atomic.StoreInt32(&s.currentPID, 0)

		if exit.signalled {
			s.logger.Info("backend terminated by signal")
		} else {
			s.logger.Info("backend exited", zap.Int("code", exit.status.ExitStatus()))
		}

		atomic.StoreInt32((*int32)(&s.state), int32(stateRespawning))
		respawnCounter++
		if respawnCounter > maxSpawns {
			s.abort(respawnCounter)
			return
		}

		time.Sleep(cleanupSleep)
		atomic.StoreInt32((*int32)(&s.state), int32(stateRunning))
	}
}

// waitForExit blocks until pid's exit is reported by the SIGCHLD reaper.
func (s *Supervisor) waitForExit(pid int) exitReport {
	for report := range s.exitCh {
		if report.pid == pid {
			return report
		}
	}
	return exitReport{pid: pid}
}

func (s *Supervisor) abort(respawnCounter int) {
	atomic.StoreInt32((*int32)(&s.state), int32(stateAborting))
	s.logger.Error("Process spawning too much, aborting gasket", zap.Int("respawn_counter", respawnCounter))
	os.Exit(-1)
}

// signalLoop dispatches SIGHUP/SIGINT/SIGTERM/SIGQUIT/SIGCHLD per §4.G
// point 5 until close() is called.
func (s *Supervisor) signalLoop() {
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.sigCh:
			switch sig {
			case syscall.SIGHUP:
				s.logger.Info("received SIGHUP (reserved, log only)")
			case syscall.SIGINT:
				s.forward(syscall.SIGINT)
			case syscall.SIGTERM, syscall.SIGQUIT:
				s.forward(syscall.SIGTERM)
			case syscall.SIGCHLD:
				s.reapZombies()
			}
		}
	}
}

func (s *Supervisor) forward(sig syscall.Signal) {
	pid := int(atomic.LoadInt32(&s.currentPID))
	if pid == 0 {
		return
	}
	if err := syscall.Kill(pid, sig); err != nil {
		s.logger.Warn("failed to forward signal to child", zap.Int("pid", pid), zap.Error(err))
	}
}

// reapZombies performs a non-blocking wait loop until the tracked child is
// reaped or no more children are waiting, per §4.G point 5's SIGCHLD
// handling.
func (s *Supervisor) reapZombies() {
	target := int(atomic.LoadInt32(&s.currentPID))
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		if target != 0 && pid == target {
			select {
			case s.exitCh <- exitReport{
				pid:       pid,
				status:    status,
				signalled: status.Signaled(),
			}:
			default:
			}
		}
	}
}

func portEnv(backendPort int) string {
	return "PORT=" + strconv.Itoa(backendPort)
}
