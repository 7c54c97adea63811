package supervisor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartIsInertWithEmptyCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("no shell utilities available in this environment")
	}

	s := New(nil)
	closeFn, err := s.Start(context.Background(), "", 0)
	require.NoError(t, err)
	defer closeFn()

	select {
	case pid := <-s.pidCh:
		t.Fatalf("expected no spawn for empty command, got pid %d", pid)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartPublishesChildPID(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("no shell utilities available in this environment")
	}

	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	closeFn, err := s.Start(ctx, "sleep 5", 3001)
	require.NoError(t, err)
	defer closeFn()

	select {
	case pid := <-s.pidCh:
		assert.Greater(t, pid, 0)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a PID to be published")
	}
}

func TestForwardIsNoOpWithoutALiveChild(t *testing.T) {
	s := New(nil)
	// No child spawned; forwarding must not panic or block.
	s.forward(0)
}
