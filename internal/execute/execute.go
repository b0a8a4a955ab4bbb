// Package execute spawns job command lines as detachable child processes.
//
// Command lines are interpreted by the shell, not tokenized here: tool
// wrappers legitimately use pipes and redirection. The command line is
// trusted input staged by the tool/config layer; it is never derived from
// the client-named paths that containment checks guard.
package execute

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Handle is a live reference to a spawned process. Spawn returns it
// immediately; completion is observed through Wait or Done.
type Handle struct {
	pid  int
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
}

// Spawn starts commandLine under the shell with workingDirectory as its
// current directory, streaming output to the given sinks. On unix hosts the
// child is placed in its own process group so Terminate can take down the
// whole subtree.
func Spawn(commandLine, workingDirectory string, stdout, stderr io.Writer) (*Handle, error) {
	cmd := shellCommand(commandLine)
	cmd.Dir = workingDirectory
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn command: %w", err)
	}

	h := &Handle{
		pid:      cmd.Process.Pid,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.exitCode = cmd.ProcessState.ExitCode()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Pid returns the immediate child's process id.
func (h *Handle) Pid() int { return h.pid }

// Done is closed once the process has exited and its status is recorded.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits and returns its exit code. A non-nil
// error is returned only for failures other than a non-zero exit status.
func (h *Handle) Wait() (int, error) {
	<-h.done
	return h.ExitCode(), nil
}

// ExitCode returns the recorded exit code, or -1 while the process is still
// running or when it was killed by a signal.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Terminate asks the process group to exit and escalates to a hard kill
// after the grace period. It blocks until the process is gone.
func (h *Handle) Terminate(grace time.Duration) {
	select {
	case <-h.done:
		return
	default:
	}

	signalGroupTerm(h.pid)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		signalGroupKill(h.pid)
		<-h.done
	}
}
