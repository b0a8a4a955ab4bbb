// Package managertest holds the lifecycle contract suite every backend must
// pass. Backends call RunContract from their own tests with a factory for a
// ready-to-use manager.
package managertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/runstage/runstage/internal/manager"
	"github.com/runstage/runstage/internal/staging"
)

// Factory builds a fresh manager instance backed by temporary state.
type Factory func(t *testing.T) manager.Manager

const (
	pollInterval = 10 * time.Millisecond
	pollDeadline = 15 * time.Second
)

// RunContract exercises the behaviors every Manager implementation must
// share, independent of backend kind.
func RunContract(t *testing.T, factory Factory) {
	t.Run("SetupRejectsBadJobID", func(t *testing.T) { testSetupRejectsBadJobID(t, factory) })
	t.Run("QueuedAfterSetup", func(t *testing.T) { testQueuedAfterSetup(t, factory) })
	t.Run("LifecycleToComplete", func(t *testing.T) { testLifecycleToComplete(t, factory) })
	t.Run("ReturnCodeUnknownBeforeComplete", func(t *testing.T) { testReturnCodeUnknown(t, factory) })
	t.Run("KillEndsCancelled", func(t *testing.T) { testKillEndsCancelled(t, factory) })
	t.Run("UnknownJobID", func(t *testing.T) { testUnknownJobID(t, factory) })
	t.Run("CleanIsIdempotent", func(t *testing.T) { testCleanIsIdempotent(t, factory) })
}

// WaitForTerminal polls GetStatus until the job reaches a terminal state.
func WaitForTerminal(t *testing.T, m manager.Manager, jobID string) manager.Status {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(pollDeadline)
	for {
		status, err := m.GetStatus(ctx, jobID)
		if err != nil {
			t.Fatalf("GetStatus(%q) error = %v", jobID, err)
		}
		if status.Terminal() {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %q did not reach a terminal state, last status %q", jobID, status)
		}
		time.Sleep(pollInterval)
	}
}

func testSetupRejectsBadJobID(t *testing.T, factory Factory) {
	m := factory(t)
	for _, jobID := range []string{"", "..", "a/b", "../escape"} {
		err := m.SetupJob(context.Background(), jobID, "tool", "1")
		if !errors.Is(err, staging.ErrInvalidJobID) {
			t.Fatalf("SetupJob(%q) error = %v, want ErrInvalidJobID", jobID, err)
		}
	}
}

func testQueuedAfterSetup(t *testing.T, factory Factory) {
	m := factory(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-q", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	status, err := m.GetStatus(ctx, "job-q")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status != manager.StatusQueued {
		t.Fatalf("status after setup = %q, want %q", status, manager.StatusQueued)
	}
}

func testLifecycleToComplete(t *testing.T, factory Factory) {
	m := factory(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-ok", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	if err := m.Launch(ctx, "job-ok", "echo hello; echo oops >&2", nil); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	status := WaitForTerminal(t, m, "job-ok")
	if status != manager.StatusComplete {
		t.Fatalf("final status = %q, want %q", status, manager.StatusComplete)
	}

	code, ok, err := m.ReturnCode(ctx, "job-ok")
	if err != nil {
		t.Fatalf("ReturnCode() error = %v", err)
	}
	if !ok || code != 0 {
		t.Fatalf("ReturnCode() = (%d, %v), want (0, true)", code, ok)
	}

	stdout, err := m.StdoutContents(ctx, "job-ok")
	if err != nil {
		t.Fatalf("StdoutContents() error = %v", err)
	}
	if string(stdout) != "hello\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "hello\n")
	}
	stderr, err := m.StderrContents(ctx, "job-ok")
	if err != nil {
		t.Fatalf("StderrContents() error = %v", err)
	}
	if string(stderr) != "oops\n" {
		t.Fatalf("stderr = %q, want %q", stderr, "oops\n")
	}
}

func testReturnCodeUnknown(t *testing.T, factory Factory) {
	m := factory(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-rc", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	_, ok, err := m.ReturnCode(ctx, "job-rc")
	if err != nil {
		t.Fatalf("ReturnCode() error = %v", err)
	}
	if ok {
		t.Fatalf("ReturnCode() reported a code before completion")
	}
}

func testKillEndsCancelled(t *testing.T, factory Factory) {
	m := factory(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-kill", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	if err := m.Launch(ctx, "job-kill", "sleep 60", nil); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if err := m.Kill(ctx, "job-kill"); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	status := WaitForTerminal(t, m, "job-kill")
	if status != manager.StatusCancelled {
		t.Fatalf("final status = %q, want %q", status, manager.StatusCancelled)
	}

	// Killing a terminal job is a no-op, never an error.
	if err := m.Kill(ctx, "job-kill"); err != nil {
		t.Fatalf("Kill() on terminal job error = %v", err)
	}
	// And the state never moves backward.
	again, err := m.GetStatus(ctx, "job-kill")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if again != manager.StatusCancelled {
		t.Fatalf("status after repeated kill = %q, want %q", again, manager.StatusCancelled)
	}
}

func testUnknownJobID(t *testing.T, factory Factory) {
	m := factory(t)
	ctx := context.Background()

	if _, err := m.GetStatus(ctx, "ghost"); !errors.Is(err, manager.ErrJobNotFound) {
		t.Fatalf("GetStatus(ghost) error = %v, want ErrJobNotFound", err)
	}
	if _, _, err := m.ReturnCode(ctx, "ghost"); !errors.Is(err, manager.ErrJobNotFound) {
		t.Fatalf("ReturnCode(ghost) error = %v, want ErrJobNotFound", err)
	}
	if _, err := m.StdoutContents(ctx, "ghost"); !errors.Is(err, manager.ErrJobNotFound) {
		t.Fatalf("StdoutContents(ghost) error = %v, want ErrJobNotFound", err)
	}
	if err := m.Kill(ctx, "ghost"); !errors.Is(err, manager.ErrJobNotFound) {
		t.Fatalf("Kill(ghost) error = %v, want ErrJobNotFound", err)
	}
}

func testCleanIsIdempotent(t *testing.T, factory Factory) {
	m := factory(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-clean", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	if err := m.Launch(ctx, "job-clean", "true", nil); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	WaitForTerminal(t, m, "job-clean")

	if err := m.Clean(ctx, "job-clean"); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if err := m.Clean(ctx, "job-clean"); err != nil {
		t.Fatalf("second Clean() error = %v", err)
	}
}
