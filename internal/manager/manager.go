// Package manager defines the lifecycle contract every execution backend
// implements, plus the staging-directory bookkeeping they all share.
package manager

import (
	"context"
	"errors"
)

// Status is the coarse lifecycle state of a job. complete and cancelled are
// terminal; kill only ever moves a job toward cancelled.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// ErrJobNotFound reports an operation against a job id this manager has
// never seen (or has already cleaned).
var ErrJobNotFound = errors.New("job not found")

// Manager is the contract between the staging substrate and a concrete
// execution backend. One manager instance governs all jobs of its backend
// kind for the life of the process.
//
// Launch is asynchronous: it returns once the backend has accepted the
// command, and progress is observed by polling GetStatus.
type Manager interface {
	// SetupJob provisions the job's staging directory and records tool
	// metadata. It must be called before any other operation for jobID.
	SetupJob(ctx context.Context, jobID, toolID, toolVersion string) error

	// Subarea accessors for the job's staging directory.
	WorkingDirectory(ctx context.Context, jobID string) (string, error)
	InputsDirectory(ctx context.Context, jobID string) (string, error)
	OutputsDirectory(ctx context.Context, jobID string) (string, error)
	ConfigsDirectory(ctx context.Context, jobID string) (string, error)
	ToolFilesDirectory(ctx context.Context, jobID string) (string, error)
	UnstructuredFilesDirectory(ctx context.Context, jobID string) (string, error)

	// Launch hands commandLine to the backend. submitParams are passed
	// through opaquely to backends that submit to an external scheduler.
	Launch(ctx context.Context, jobID, commandLine string, submitParams map[string]string) error

	// GetStatus returns the job's current lifecycle state.
	GetStatus(ctx context.Context, jobID string) (Status, error)

	// ReturnCode returns the captured exit code. ok is false while no exit
	// code has been captured (job not complete, or the backend cannot
	// report one).
	ReturnCode(ctx context.Context, jobID string) (code int, ok bool, err error)

	// StdoutContents and StderrContents return captured output. Before the
	// job is terminal they return whatever has been captured so far.
	StdoutContents(ctx context.Context, jobID string) ([]byte, error)
	StderrContents(ctx context.Context, jobID string) ([]byte, error)

	// Kill moves a queued or running job toward cancelled. It is a no-op,
	// not an error, on a job that is already terminal.
	Kill(ctx context.Context, jobID string) error

	// Clean deletes the job's staging directory and releases backend
	// resources. A second Clean for the same id is a no-op.
	Clean(ctx context.Context, jobID string) error
}
