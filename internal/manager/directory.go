package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/runstage/runstage/internal/staging"
)

// Control files every backend writes directly under the job root. Exported
// so backends that generate wrapper scripts target the same names that
// RecordedReturnCode and the output readers consume.
const (
	ToolIDFile      = "tool_id"
	ToolVersionFile = "tool_version"
	StdoutFile      = "stdout"
	StderrFile      = "stderr"
	ReturnCodeFile  = "return_code"
	CancelledFile   = "cancelled"
)

// DirectoryOptions tune post-setup treatment of job directories.
type DirectoryOptions struct {
	// FixupUmask and FixupMode drive best-effort permission fixup on the
	// job root after setup; fixup runs only when FixupMode is non-zero.
	FixupUmask os.FileMode
	FixupMode  os.FileMode

	// FixupGID is the group applied during fixup; negative leaves the
	// group alone.
	FixupGID int
}

// DirectoryManager maps job ids to staging directories. It is embedded by
// every backend and is the only component that constructs paths under the
// staging root.
type DirectoryManager struct {
	stagingRoot string
	opts        DirectoryOptions
	logger      *slog.Logger

	mu   sync.Mutex
	dirs map[string]*staging.JobDirectory
}

// NewDirectoryManager creates the shared directory bookkeeping rooted at
// stagingRoot.
func NewDirectoryManager(stagingRoot string, opts DirectoryOptions, logger *slog.Logger) (*DirectoryManager, error) {
	trimmed := strings.TrimSpace(stagingRoot)
	if trimmed == "" {
		return nil, fmt.Errorf("staging root is empty")
	}
	if opts.FixupGID == 0 {
		opts.FixupGID = -1
	}
	return &DirectoryManager{
		stagingRoot: trimmed,
		opts:        opts,
		logger:      logger,
		dirs:        make(map[string]*staging.JobDirectory),
	}, nil
}

// SetupJob creates the job directory and records tool metadata control
// files.
func (m *DirectoryManager) SetupJob(ctx context.Context, jobID, toolID, toolVersion string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := staging.NewJobDirectory(m.stagingRoot, jobID)
	if err != nil {
		return err
	}
	if err := dir.Setup(); err != nil {
		return err
	}
	if m.opts.FixupMode != 0 {
		staging.FixPerms(dir.Path(), m.opts.FixupUmask, m.opts.FixupMode, m.opts.FixupGID, m.logger)
	}

	if _, err := dir.WriteFile(ToolIDFile, toolID); err != nil {
		return err
	}
	if _, err := dir.WriteFile(ToolVersionFile, toolVersion); err != nil {
		return err
	}

	m.mu.Lock()
	m.dirs[jobID] = dir
	m.mu.Unlock()

	m.logger.Info("job directory set up", "job_id", jobID, "tool_id", toolID, "path", dir.Path())
	return nil
}

// Directory resolves jobID to its staging directory. Directories present on
// disk but not yet registered (a restarted process) are re-attached.
func (m *DirectoryManager) Directory(jobID string) (*staging.JobDirectory, error) {
	m.mu.Lock()
	dir, ok := m.dirs[jobID]
	m.mu.Unlock()
	if ok {
		return dir, nil
	}

	dir, err := staging.NewJobDirectory(m.stagingRoot, jobID)
	if err != nil {
		return nil, err
	}
	if !dir.Exists() {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, jobID)
	}

	m.mu.Lock()
	m.dirs[jobID] = dir
	m.mu.Unlock()
	return dir, nil
}

func (m *DirectoryManager) subarea(ctx context.Context, jobID string, pick func(*staging.JobDirectory) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := m.Directory(jobID)
	if err != nil {
		return "", err
	}
	return pick(dir)
}

// WorkingDirectory returns the job's working directory.
func (m *DirectoryManager) WorkingDirectory(ctx context.Context, jobID string) (string, error) {
	return m.subarea(ctx, jobID, (*staging.JobDirectory).Working)
}

// InputsDirectory returns the job's input staging directory.
func (m *DirectoryManager) InputsDirectory(ctx context.Context, jobID string) (string, error) {
	return m.subarea(ctx, jobID, (*staging.JobDirectory).Inputs)
}

// OutputsDirectory returns the job's output directory.
func (m *DirectoryManager) OutputsDirectory(ctx context.Context, jobID string) (string, error) {
	return m.subarea(ctx, jobID, (*staging.JobDirectory).Outputs)
}

// ConfigsDirectory returns the job's config-file directory.
func (m *DirectoryManager) ConfigsDirectory(ctx context.Context, jobID string) (string, error) {
	return m.subarea(ctx, jobID, (*staging.JobDirectory).Configs)
}

// ToolFilesDirectory returns the job's tool wrapper directory.
func (m *DirectoryManager) ToolFilesDirectory(ctx context.Context, jobID string) (string, error) {
	return m.subarea(ctx, jobID, (*staging.JobDirectory).ToolFiles)
}

// UnstructuredFilesDirectory returns the job's unstructured-file directory.
func (m *DirectoryManager) UnstructuredFilesDirectory(ctx context.Context, jobID string) (string, error) {
	return m.subarea(ctx, jobID, (*staging.JobDirectory).Unstructured)
}

// CleanDirectory deletes the job directory and drops the registration. A
// job never seen, or cleaned already, is a quiet no-op.
func (m *DirectoryManager) CleanDirectory(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := staging.NewJobDirectory(m.stagingRoot, jobID)
	if err != nil {
		return err
	}
	if err := dir.Delete(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.dirs, jobID)
	m.mu.Unlock()

	m.logger.Info("job directory cleaned", "job_id", jobID)
	return nil
}

// OpenOutputFiles opens (creating if needed) the job's stdout and stderr
// capture files for the launcher to stream into.
func (m *DirectoryManager) OpenOutputFiles(jobID string) (stdout, stderr *os.File, err error) {
	dir, err := m.Directory(jobID)
	if err != nil {
		return nil, nil, err
	}
	stdout, err = dir.OpenFile(StdoutFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		return nil, nil, err
	}
	stderr, err = dir.OpenFile(StderrFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
	if err != nil {
		_ = stdout.Close()
		return nil, nil, err
	}
	return stdout, stderr, nil
}

// StdoutContents returns the captured stdout so far; empty before launch.
func (m *DirectoryManager) StdoutContents(ctx context.Context, jobID string) ([]byte, error) {
	return m.outputContents(ctx, jobID, StdoutFile)
}

// StderrContents returns the captured stderr so far; empty before launch.
func (m *DirectoryManager) StderrContents(ctx context.Context, jobID string) ([]byte, error) {
	return m.outputContents(ctx, jobID, StderrFile)
}

func (m *DirectoryManager) outputContents(ctx context.Context, jobID, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := m.Directory(jobID)
	if err != nil {
		return nil, err
	}
	return dir.ReadFileDefault(name, []byte{})
}

// RecordReturnCode persists the exit code as a control file so it survives
// a process restart.
func (m *DirectoryManager) RecordReturnCode(jobID string, code int) error {
	dir, err := m.Directory(jobID)
	if err != nil {
		return err
	}
	_, err = dir.WriteFile(ReturnCodeFile, strconv.Itoa(code))
	return err
}

// RecordedReturnCode reads back a persisted exit code; ok is false when
// none has been recorded.
func (m *DirectoryManager) RecordedReturnCode(jobID string) (code int, ok bool, err error) {
	dir, err := m.Directory(jobID)
	if err != nil {
		return 0, false, err
	}
	raw, err := dir.ReadFileDefault(ReturnCodeFile, nil)
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
	if convErr != nil {
		return 0, false, fmt.Errorf("corrupt return_code file for job %q: %w", jobID, convErr)
	}
	return code, true, nil
}

// RecordCancelled persists a cancellation marker so the decision survives a
// process restart.
func (m *DirectoryManager) RecordCancelled(jobID string) error {
	dir, err := m.Directory(jobID)
	if err != nil {
		return err
	}
	_, err = dir.WriteFile(CancelledFile, "")
	return err
}

// CancelledRecorded reports whether a cancellation marker has been persisted.
func (m *DirectoryManager) CancelledRecorded(jobID string) (bool, error) {
	dir, err := m.Directory(jobID)
	if err != nil {
		return false, err
	}
	return dir.ContainsFile(CancelledFile), nil
}
