// Package queued runs jobs through a bounded worker pool backed by a
// persistent SQLite registry, so accepted work survives a process restart.
package queued

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runstage/runstage/internal/execute"
	"github.com/runstage/runstage/internal/manager"
)

const (
	terminationGrace = 5 * time.Second
	claimInterval    = 25 * time.Millisecond
)

// Manager is the queued execution backend. Launch enqueues; a fixed pool of
// workers claims and executes jobs oldest-first.
type Manager struct {
	*manager.DirectoryManager
	store  *store
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*execute.Handle

	stop   context.CancelFunc
	workWG sync.WaitGroup
}

var _ manager.Manager = (*Manager)(nil)

// New creates a queued manager staging under stagingRoot with state in db,
// requeues any jobs stranded by a previous process, and starts workers
// claim loops. Close stops them. A zero worker count accepts and tracks
// jobs without executing any; callers wanting execution pass at least one.
func New(stagingRoot string, opts manager.DirectoryOptions, db *sql.DB, workers int, logger *slog.Logger) (*Manager, error) {
	dirs, err := manager.NewDirectoryManager(stagingRoot, opts, logger)
	if err != nil {
		return nil, err
	}
	if workers < 0 {
		workers = 0
	}

	m := &Manager{
		DirectoryManager: dirs,
		store:            &store{db: db},
		logger:           logger,
		handles:          make(map[string]*execute.Handle),
	}

	requeued, err := m.store.requeueRunning(context.Background())
	if err != nil {
		return nil, err
	}
	if requeued > 0 {
		logger.Info("requeued jobs stranded by previous process", "count", requeued)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.stop = cancel
	for i := 0; i < workers; i++ {
		m.workWG.Add(1)
		go m.worker(ctx)
	}
	return m, nil
}

// Close stops the worker pool. In-flight jobs keep running until their
// processes exit; their terminal state is recorded before the worker
// returns.
func (m *Manager) Close() {
	m.stop()
	m.workWG.Wait()
}

func (m *Manager) worker(ctx context.Context) {
	defer m.workWG.Done()

	ticker := time.NewTicker(claimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job, err := m.store.claimNext(ctx)
				if err != nil {
					if ctx.Err() == nil {
						m.logger.Error("failed to claim job", "error", err)
					}
					break
				}
				if job == nil {
					break
				}
				m.run(job)
			}
		}
	}
}

// run executes one claimed job to a terminal state.
func (m *Manager) run(job *jobRow) {
	// Worker execution must outlive the claim context: a stopping pool
	// still records terminal state for in-flight jobs.
	ctx := context.Background()
	logger := m.logger.With("job_id", job.ID)

	workingDir, err := m.WorkingDirectory(ctx, job.ID)
	if err != nil {
		m.abort(ctx, job.ID, logger, err)
		return
	}
	stdout, stderr, err := m.OpenOutputFiles(job.ID)
	if err != nil {
		m.abort(ctx, job.ID, logger, err)
		return
	}

	handle, err := execute.Spawn(job.CommandLine, workingDir, stdout, stderr)
	if err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		m.abort(ctx, job.ID, logger, err)
		return
	}

	m.mu.Lock()
	m.handles[job.ID] = handle
	m.mu.Unlock()
	logger.Info("job started", "pid", handle.Pid())

	// A kill can land between the claim and the handle registration above;
	// it will have marked the row cancelled without finding a handle to
	// signal. Re-check so the process does not outlive its cancellation.
	if row, err := m.store.get(ctx, job.ID); err == nil && row != nil && row.Status == manager.StatusCancelled {
		handle.Terminate(terminationGrace)
	}

	code, _ := handle.Wait()
	_ = stdout.Close()
	_ = stderr.Close()

	m.mu.Lock()
	delete(m.handles, job.ID)
	m.mu.Unlock()

	if err := m.RecordReturnCode(job.ID, code); err != nil {
		logger.Error("failed to record return code", "error", err)
	}
	// Conditional update: if the job was cancelled while running, the
	// cancellation wins and this is a no-op.
	if err := m.store.finish(ctx, job.ID, manager.StatusComplete, &code); err != nil {
		logger.Error("failed to record completion", "error", err)
	}
	logger.Info("job finished", "exit_code", code)
}

// abort moves a claimed job that could not execute to cancelled.
func (m *Manager) abort(ctx context.Context, jobID string, logger *slog.Logger, cause error) {
	logger.Error("job could not be executed", "error", cause)
	if err := m.store.finish(ctx, jobID, manager.StatusCancelled, nil); err != nil {
		logger.Error("failed to record abort", "error", err)
	}
}

// SetupJob provisions the staging directory and registers the job queued.
func (m *Manager) SetupJob(ctx context.Context, jobID, toolID, toolVersion string) error {
	if err := m.DirectoryManager.SetupJob(ctx, jobID, toolID, toolVersion); err != nil {
		return err
	}
	return m.store.insert(ctx, jobID, toolID)
}

// Launch records the command line and hands the job to the worker pool.
// submitParams have no meaning for the internal queue and are ignored.
func (m *Manager) Launch(ctx context.Context, jobID, commandLine string, submitParams map[string]string) error {
	if err := m.store.markLaunched(ctx, jobID, commandLine); err != nil {
		return err
	}
	m.logger.Info("job enqueued", "job_id", jobID)
	return nil
}

// GetStatus returns the registry's view of the job.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (manager.Status, error) {
	row, err := m.store.get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("%w: %q", manager.ErrJobNotFound, jobID)
	}
	return row.Status, nil
}

// ReturnCode reports the exit code recorded at completion.
func (m *Manager) ReturnCode(ctx context.Context, jobID string) (int, bool, error) {
	row, err := m.store.get(ctx, jobID)
	if err != nil {
		return 0, false, err
	}
	if row == nil {
		return 0, false, fmt.Errorf("%w: %q", manager.ErrJobNotFound, jobID)
	}
	if row.Status != manager.StatusComplete || row.ReturnCode == nil {
		return 0, false, nil
	}
	return *row.ReturnCode, true, nil
}

// Kill cancels a queued job outright and terminates a running one.
func (m *Manager) Kill(ctx context.Context, jobID string) error {
	row, err := m.store.get(ctx, jobID)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: %q", manager.ErrJobNotFound, jobID)
	}
	if row.Status.Terminal() {
		return nil
	}

	changed, err := m.store.cancel(ctx, jobID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	m.mu.Lock()
	handle := m.handles[jobID]
	m.mu.Unlock()
	if handle != nil {
		m.logger.Info("terminating job", "job_id", jobID)
		handle.Terminate(terminationGrace)
	} else {
		m.logger.Info("queued job cancelled", "job_id", jobID)
	}
	return nil
}

// Clean removes the job from the registry and deletes its directory,
// terminating it first if it is still running.
func (m *Manager) Clean(ctx context.Context, jobID string) error {
	m.mu.Lock()
	handle := m.handles[jobID]
	m.mu.Unlock()
	if handle != nil {
		if _, err := m.store.cancel(ctx, jobID); err != nil {
			return err
		}
		handle.Terminate(terminationGrace)
	}

	if err := m.store.delete(ctx, jobID); err != nil {
		return err
	}
	return m.CleanDirectory(ctx, jobID)
}
