// Package cli adapts the manager contract to an external scheduler driven
// through its command-line tools (qsub/qstat/qdel and lookalikes). The
// daemon never holds a process handle for these jobs; all lifecycle state
// lives in scheduler queries and control files, which also makes the
// backend restart-safe for free.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/runstage/runstage/internal/manager"
	"github.com/runstage/runstage/internal/staging"
)

// Control files recording scheduler interaction, beyond the shared ones
// defined in the manager package.
const (
	externalIDFile = "external_id"
	scriptName     = "command.sh"
)

// Options are the scheduler command templates. Placeholders: {script} is
// the absolute path of the generated job script, {id} the scheduler's job
// id as parsed from submit output, {params} the flattened submit
// parameters ("key=value", space separated, key order sorted).
type Options struct {
	// SubmitCommand submits {script} and prints the external job id on
	// stdout. Required.
	SubmitCommand string

	// StatusCommand prints a scheduler state word for {id}. Optional: when
	// empty, a submitted job counts as running until its script records an
	// exit code.
	StatusCommand string

	// KillCommand cancels {id} at the scheduler. Optional.
	KillCommand string

	// StatusMap translates the StatusCommand output word into a lifecycle
	// state. Words not in the map count as running.
	StatusMap map[string]manager.Status
}

// PBSOptions returns templates for a PBS-style scheduler.
func PBSOptions() Options {
	return Options{
		SubmitCommand: "qsub {script}",
		StatusCommand: "qstat -f {id} | awk '/job_state/ {print $3}'",
		KillCommand:   "qdel {id}",
		StatusMap: map[string]manager.Status{
			"Q": manager.StatusQueued,
			"H": manager.StatusQueued,
			"W": manager.StatusQueued,
			"R": manager.StatusRunning,
			"E": manager.StatusRunning,
		},
	}
}

// Manager submits launched jobs to an external scheduler.
type Manager struct {
	*manager.DirectoryManager
	opts   Options
	logger *slog.Logger
}

var _ manager.Manager = (*Manager)(nil)

// New creates a scheduler-backed manager staging under stagingRoot.
func New(stagingRoot string, dirOpts manager.DirectoryOptions, opts Options, logger *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(opts.SubmitCommand) == "" {
		return nil, fmt.Errorf("submit command template is empty")
	}
	dirs, err := manager.NewDirectoryManager(stagingRoot, dirOpts, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{DirectoryManager: dirs, opts: opts, logger: logger}, nil
}

// Launch writes a job script into the tool_files subarea and submits it.
// The script stages its own output and exit-code capture, since the
// scheduler reports neither back to us.
func (m *Manager) Launch(ctx context.Context, jobID, commandLine string, submitParams map[string]string) error {
	dir, err := m.Directory(jobID)
	if err != nil {
		return err
	}
	if dir.ContainsFile(externalIDFile) {
		return fmt.Errorf("launch job %q: already submitted", jobID)
	}
	if dir.ContainsFile(manager.CancelledFile) {
		return fmt.Errorf("launch job %q: cancelled", jobID)
	}

	scriptPath, err := m.writeScript(ctx, jobID, commandLine)
	if err != nil {
		return err
	}

	command := strings.NewReplacer(
		"{script}", scriptPath,
		"{params}", flattenParams(submitParams),
	).Replace(m.opts.SubmitCommand)

	output, err := runScheduler(ctx, command)
	if err != nil {
		// Job stays pre-running; the caller decides whether to resubmit.
		return fmt.Errorf("submit job %q: %w", jobID, err)
	}
	externalID := strings.TrimSpace(output)
	if externalID == "" {
		return fmt.Errorf("submit job %q: scheduler printed no job id", jobID)
	}

	if _, err := dir.WriteFile(externalIDFile, externalID); err != nil {
		return err
	}
	m.logger.Info("job submitted to scheduler", "job_id", jobID, "external_id", externalID)
	return nil
}

// writeScript generates the wrapper the scheduler will run: change into
// the working directory, run the tool command line with output captured
// into the job directory, record the exit code last so its presence means
// the run is over.
func (m *Manager) writeScript(ctx context.Context, jobID, commandLine string) (string, error) {
	workingDir, err := m.WorkingDirectory(ctx, jobID)
	if err != nil {
		return "", err
	}
	toolFiles, err := m.ToolFilesDirectory(ctx, jobID)
	if err != nil {
		return "", err
	}
	dir, err := m.Directory(jobID)
	if err != nil {
		return "", err
	}

	script := fmt.Sprintf(`#!/bin/sh
cd %q
%s > %q 2> %q
echo $? > %q
`,
		workingDir,
		commandLine,
		filepath.Join(dir.Path(), manager.StdoutFile),
		filepath.Join(dir.Path(), manager.StderrFile),
		filepath.Join(dir.Path(), manager.ReturnCodeFile),
	)

	scriptPath := filepath.Join(toolFiles, scriptName)
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write job script for %q: %w", jobID, err)
	}
	return scriptPath, nil
}

// GetStatus derives the lifecycle state from control files first and the
// scheduler second: a cancelled marker or recorded exit code is
// authoritative, everything else is the scheduler's word.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (manager.Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := m.Directory(jobID)
	if err != nil {
		return "", err
	}

	if dir.ContainsFile(manager.CancelledFile) {
		return manager.StatusCancelled, nil
	}
	if dir.ContainsFile(manager.ReturnCodeFile) {
		return manager.StatusComplete, nil
	}
	if !dir.ContainsFile(externalIDFile) {
		return manager.StatusQueued, nil
	}

	if m.opts.StatusCommand == "" {
		return manager.StatusRunning, nil
	}
	status, err := m.queryScheduler(ctx, dir)
	if err != nil {
		// A scheduler hiccup is not a state change; the job was submitted
		// and has not recorded an exit, so it is still in flight.
		m.logger.Warn("scheduler status query failed", "job_id", jobID, "error", err)
		return manager.StatusRunning, nil
	}
	return status, nil
}

func (m *Manager) queryScheduler(ctx context.Context, dir *staging.JobDirectory) (manager.Status, error) {
	externalID, err := dir.ReadFile(externalIDFile)
	if err != nil {
		return "", err
	}
	command := strings.ReplaceAll(m.opts.StatusCommand, "{id}", strings.TrimSpace(string(externalID)))
	output, err := runScheduler(ctx, command)
	if err != nil {
		return "", err
	}

	word := strings.TrimSpace(output)
	if status, ok := m.opts.StatusMap[word]; ok {
		return status, nil
	}
	return manager.StatusRunning, nil
}

// ReturnCode reads the exit code the job script recorded.
func (m *Manager) ReturnCode(ctx context.Context, jobID string) (int, bool, error) {
	status, err := m.GetStatus(ctx, jobID)
	if err != nil {
		return 0, false, err
	}
	if status != manager.StatusComplete {
		return 0, false, nil
	}
	return m.RecordedReturnCode(jobID)
}

// Kill cancels the job at the scheduler and records a local cancelled
// marker so status stays cancelled even if the scheduler forgets the id.
func (m *Manager) Kill(ctx context.Context, jobID string) error {
	status, err := m.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if status.Terminal() {
		return nil
	}
	dir, err := m.Directory(jobID)
	if err != nil {
		return err
	}

	if m.opts.KillCommand != "" && dir.ContainsFile(externalIDFile) {
		externalID, err := dir.ReadFile(externalIDFile)
		if err != nil {
			return err
		}
		command := strings.ReplaceAll(m.opts.KillCommand, "{id}", strings.TrimSpace(string(externalID)))
		if _, err := runScheduler(ctx, command); err != nil {
			m.logger.Warn("scheduler kill failed", "job_id", jobID, "error", err)
		}
	}

	if _, err := dir.WriteFile(manager.CancelledFile, ""); err != nil {
		return err
	}
	m.logger.Info("job cancelled", "job_id", jobID)
	return nil
}

// Clean deletes the staging directory; the scheduler holds no other
// resources for a terminal job.
func (m *Manager) Clean(ctx context.Context, jobID string) error {
	return m.CleanDirectory(ctx, jobID)
}

// runScheduler runs one scheduler command line to completion and returns
// its stdout.
func runScheduler(ctx context.Context, command string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("scheduler command %q: %w (stderr: %s)",
			command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func flattenParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " ")
}
