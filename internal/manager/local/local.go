// Package local runs jobs directly on the host as child processes of this
// process.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runstage/runstage/internal/execute"
	"github.com/runstage/runstage/internal/manager"
)

// terminationGrace is how long a killed job gets between SIGTERM and
// SIGKILL.
const terminationGrace = 5 * time.Second

type job struct {
	status    manager.Status
	cancelled bool
	handle    *execute.Handle
}

// Manager executes launched command lines via internal/execute, one child
// process per job, capturing output into the job directory.
type Manager struct {
	*manager.DirectoryManager
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

var _ manager.Manager = (*Manager)(nil)

// New creates a local-execution manager staging jobs under stagingRoot.
func New(stagingRoot string, opts manager.DirectoryOptions, logger *slog.Logger) (*Manager, error) {
	dirs, err := manager.NewDirectoryManager(stagingRoot, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{
		DirectoryManager: dirs,
		logger:           logger,
		jobs:             make(map[string]*job),
	}, nil
}

// SetupJob provisions the job directory and registers the job as queued.
func (m *Manager) SetupJob(ctx context.Context, jobID, toolID, toolVersion string) error {
	if err := m.DirectoryManager.SetupJob(ctx, jobID, toolID, toolVersion); err != nil {
		return err
	}
	m.mu.Lock()
	m.jobs[jobID] = &job{status: manager.StatusQueued}
	m.mu.Unlock()
	return nil
}

// ensure resolves jobID to its tracked state, re-attaching jobs whose
// directory survived a process restart.
func (m *Manager) ensure(jobID string) (*job, error) {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	m.mu.Unlock()
	if ok {
		return j, nil
	}

	if _, err := m.Directory(jobID); err != nil {
		return nil, err
	}

	// The directory exists but the process table was lost. A persisted
	// cancellation marker is authoritative, then a recorded return code;
	// anything else is back to queued, since no handle can be recovered.
	status := manager.StatusQueued
	if cancelled, err := m.CancelledRecorded(jobID); err == nil && cancelled {
		status = manager.StatusCancelled
	} else if _, recorded, err := m.RecordedReturnCode(jobID); err == nil && recorded {
		status = manager.StatusComplete
	}

	m.mu.Lock()
	if existing, ok := m.jobs[jobID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	j = &job{status: status}
	m.jobs[jobID] = j
	m.mu.Unlock()
	return j, nil
}

// Launch spawns commandLine in the job's working directory. submitParams
// are ignored: there is no external scheduler to forward them to.
func (m *Manager) Launch(ctx context.Context, jobID, commandLine string, submitParams map[string]string) error {
	j, err := m.ensure(jobID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if j.status != manager.StatusQueued {
		status := j.status
		m.mu.Unlock()
		return fmt.Errorf("launch job %q: status is %q, want %q", jobID, status, manager.StatusQueued)
	}
	m.mu.Unlock()

	workingDir, err := m.WorkingDirectory(ctx, jobID)
	if err != nil {
		return err
	}
	stdout, stderr, err := m.OpenOutputFiles(jobID)
	if err != nil {
		return err
	}

	handle, err := execute.Spawn(commandLine, workingDir, stdout, stderr)
	if err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		// The job stays queued; the caller decides whether to retry.
		return fmt.Errorf("launch job %q: %w", jobID, err)
	}

	m.mu.Lock()
	j.status = manager.StatusRunning
	j.handle = handle
	m.mu.Unlock()

	m.logger.Info("job launched", "job_id", jobID, "pid", handle.Pid())

	go func() {
		code, _ := handle.Wait()
		_ = stdout.Close()
		_ = stderr.Close()

		m.mu.Lock()
		cancelled := j.cancelled
		if cancelled {
			j.status = manager.StatusCancelled
		} else {
			j.status = manager.StatusComplete
		}
		m.mu.Unlock()

		if !cancelled {
			if err := m.RecordReturnCode(jobID, code); err != nil {
				m.logger.Error("failed to record return code", "job_id", jobID, "error", err)
			}
		}
		m.logger.Info("job finished", "job_id", jobID, "exit_code", code, "cancelled", cancelled)
	}()
	return nil
}

// GetStatus returns the job's lifecycle state.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (manager.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	j, err := m.ensure(jobID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return j.status, nil
}

// ReturnCode reports the captured exit code once the job is complete.
func (m *Manager) ReturnCode(ctx context.Context, jobID string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	j, err := m.ensure(jobID)
	if err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	status := j.status
	m.mu.Unlock()
	if status != manager.StatusComplete {
		return 0, false, nil
	}
	return m.RecordedReturnCode(jobID)
}

// Kill moves the job toward cancelled: a queued job is cancelled outright, a
// running job's process group is terminated. Terminal jobs are untouched.
func (m *Manager) Kill(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j, err := m.ensure(jobID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if j.status.Terminal() {
		m.mu.Unlock()
		return nil
	}
	if j.status == manager.StatusQueued {
		j.status = manager.StatusCancelled
		m.mu.Unlock()
		m.recordCancelled(jobID)
		m.logger.Info("queued job cancelled", "job_id", jobID)
		return nil
	}
	j.cancelled = true
	handle := j.handle
	m.mu.Unlock()

	m.recordCancelled(jobID)
	m.logger.Info("terminating job", "job_id", jobID)
	handle.Terminate(terminationGrace)
	return nil
}

// recordCancelled persists the cancellation marker so the state survives a
// restart; the in-memory state already moved, so failures only warn.
func (m *Manager) recordCancelled(jobID string) {
	if err := m.RecordCancelled(jobID); err != nil {
		m.logger.Warn("failed to record cancellation", "job_id", jobID, "error", err)
	}
}

// Clean releases the job's process handle and deletes its directory.
func (m *Manager) Clean(ctx context.Context, jobID string) error {
	m.mu.Lock()
	j := m.jobs[jobID]
	delete(m.jobs, jobID)
	var handle *execute.Handle
	if j != nil && j.status == manager.StatusRunning {
		j.cancelled = true
		handle = j.handle
	}
	m.mu.Unlock()

	if handle != nil {
		handle.Terminate(terminationGrace)
	}
	return m.CleanDirectory(ctx, jobID)
}
