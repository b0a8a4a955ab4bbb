// Package staging owns the on-disk sandbox for each job: the per-job
// directory layout, the translation of client-supplied paths into it, and
// the atomic-publish primitive that makes outputs visible only when whole.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidJobID reports a job id that is not its own basename.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrFileNotFound reports a missing control file read without a default.
	ErrFileNotFound = errors.New("job file not found")
)

// Subarea directory names; their layout under the job root is an on-disk
// contract shared with anything that later inspects a staged job.
const (
	workingDir      = "working"
	inputsDir       = "inputs"
	outputsDir      = "outputs"
	configsDir      = "configs"
	toolFilesDir    = "tool_files"
	unstructuredDir = "unstructured"
)

// JobDirectory is the sandbox for exactly one job. All paths handed out by
// its methods live under Path(); nothing outside this package should build
// paths into a job directory by other means.
type JobDirectory struct {
	jobID string
	root  string
}

// NewJobDirectory validates jobID and binds it to stagingRoot + jobID.
// The directory itself is not created until Setup.
func NewJobDirectory(stagingRoot, jobID string) (*JobDirectory, error) {
	if err := ValidateJobID(jobID); err != nil {
		return nil, err
	}
	return &JobDirectory{
		jobID: jobID,
		root:  filepath.Join(stagingRoot, jobID),
	}, nil
}

// ValidateJobID rejects any job id that is not exactly its own final path
// component. This is the first layer of the sandbox boundary: an id that
// passes can never name a directory outside the staging root.
func ValidateJobID(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidJobID)
	}
	if jobID == "." || jobID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	if strings.Contains(jobID, "/") || strings.Contains(jobID, `\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidJobID, jobID)
	}
	if filepath.Clean(jobID) != jobID || filepath.Base(jobID) != jobID {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return nil
}

// JobID returns the job id this directory was bound to.
func (d *JobDirectory) JobID() string { return d.jobID }

// Path returns the absolute-form root of the sandbox.
func (d *JobDirectory) Path() string { return d.root }

// Setup creates the job root. It fails if the root already exists or the
// staging root is missing; a retried setup must surface the collision rather
// than silently reuse state.
func (d *JobDirectory) Setup() error {
	if err := os.Mkdir(d.root, 0o755); err != nil {
		return fmt.Errorf("set up job directory for %q: %w", d.jobID, err)
	}
	return nil
}

// Exists reports whether the job root is present on disk.
func (d *JobDirectory) Exists() bool {
	_, err := os.Stat(d.root)
	return err == nil
}

// Delete recursively removes the job root. Removing an already-deleted
// directory is not an error.
func (d *JobDirectory) Delete() error {
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("delete job directory for %q: %w", d.jobID, err)
	}
	return nil
}

func (d *JobDirectory) subDir(name string) (string, error) {
	p := filepath.Join(d.root, name)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("create %s directory for job %q: %w", name, d.jobID, err)
	}
	return p, nil
}

// Working returns the job's working directory, creating it if needed.
func (d *JobDirectory) Working() (string, error) { return d.subDir(workingDir) }

// Inputs returns the job's input staging directory, creating it if needed.
func (d *JobDirectory) Inputs() (string, error) { return d.subDir(inputsDir) }

// Outputs returns the job's output directory, creating it if needed.
func (d *JobDirectory) Outputs() (string, error) { return d.subDir(outputsDir) }

// Configs returns the job's config-file directory, creating it if needed.
func (d *JobDirectory) Configs() (string, error) { return d.subDir(configsDir) }

// ToolFiles returns the directory for tool wrapper scripts, creating it if
// needed.
func (d *JobDirectory) ToolFiles() (string, error) { return d.subDir(toolFilesDir) }

// Unstructured returns the directory for files with no defined subarea,
// creating it if needed.
func (d *JobDirectory) Unstructured() (string, error) { return d.subDir(unstructuredDir) }

func (d *JobDirectory) jobFile(name string) string {
	return filepath.Join(d.root, name)
}

// ReadFile returns the full contents of the named control file, or
// ErrFileNotFound when it is absent.
func (d *JobDirectory) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(d.jobFile(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q in job %q", ErrFileNotFound, name, d.jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("read job file %q: %w", name, err)
	}
	return data, nil
}

// ReadFileDefault is ReadFile with a fallback: an absent file yields def
// instead of an error.
func (d *JobDirectory) ReadFileDefault(name string, def []byte) ([]byte, error) {
	data, err := d.ReadFile(name)
	if errors.Is(err, ErrFileNotFound) {
		return def, nil
	}
	return data, err
}

// WriteFile writes or overwrites the named control file with contents
// encoded as UTF-8 and returns the file's path.
func (d *JobDirectory) WriteFile(name, contents string) (string, error) {
	p := d.jobFile(name)
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		return "", fmt.Errorf("write job file %q: %w", name, err)
	}
	return p, nil
}

// RemoveFile quietly deletes the named control file; absence is not an error.
func (d *JobDirectory) RemoveFile(name string) {
	_ = os.Remove(d.jobFile(name))
}

// ContainsFile reports whether the named control file exists.
func (d *JobDirectory) ContainsFile(name string) bool {
	_, err := os.Stat(d.jobFile(name))
	return err == nil
}

// OpenFile opens the named control file with the given flag (os.O_* values).
func (d *JobDirectory) OpenFile(name string, flag int) (*os.File, error) {
	f, err := os.OpenFile(d.jobFile(name), flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job file %q: %w", name, err)
	}
	return f, nil
}

// MakeDirectory creates a named subdirectory under the job root. The name
// may be nested and is routed through the same containment discipline as
// client-mapped paths since it can originate from untrusted input.
func (d *JobDirectory) MakeDirectory(name string) (string, error) {
	p, err := MapPath(d.root, name, true, false)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(p, 0o755); err != nil {
		return "", fmt.Errorf("make directory %q in job %q: %w", name, d.jobID, err)
	}
	return p, nil
}
