package manager

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/runstage/runstage/internal/log"
	"github.com/runstage/runstage/internal/staging"
)

func newTestDirectoryManager(t *testing.T) *DirectoryManager {
	t.Helper()
	m, err := NewDirectoryManager(t.TempDir(), DirectoryOptions{}, log.New(&bytes.Buffer{}, "ERROR", "json"))
	if err != nil {
		t.Fatalf("NewDirectoryManager() error = %v", err)
	}
	return m
}

func TestSetupJobWritesToolMetadata(t *testing.T) {
	m := newTestDirectoryManager(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-1", "cat1", "1.0.1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}

	dir, err := m.Directory("job-1")
	if err != nil {
		t.Fatalf("Directory() error = %v", err)
	}
	toolID, err := dir.ReadFile("tool_id")
	if err != nil {
		t.Fatalf("ReadFile(tool_id) error = %v", err)
	}
	if string(toolID) != "cat1" {
		t.Fatalf("tool_id = %q, want %q", toolID, "cat1")
	}
	toolVersion, err := dir.ReadFile("tool_version")
	if err != nil {
		t.Fatalf("ReadFile(tool_version) error = %v", err)
	}
	if string(toolVersion) != "1.0.1" {
		t.Fatalf("tool_version = %q, want %q", toolVersion, "1.0.1")
	}
}

func TestSetupJobRejectsTraversalID(t *testing.T) {
	m := newTestDirectoryManager(t)

	err := m.SetupJob(context.Background(), "../escape", "tool", "1")
	if !errors.Is(err, staging.ErrInvalidJobID) {
		t.Fatalf("SetupJob() error = %v, want ErrInvalidJobID", err)
	}
}

func TestSetupJobDuplicateFails(t *testing.T) {
	m := newTestDirectoryManager(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-1", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	if err := m.SetupJob(ctx, "job-1", "tool", "1"); err == nil {
		t.Fatalf("second SetupJob() succeeded, want error")
	}
}

func TestSubareaAccessorsUnknownJob(t *testing.T) {
	m := newTestDirectoryManager(t)

	_, err := m.WorkingDirectory(context.Background(), "ghost")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("WorkingDirectory(ghost) error = %v, want ErrJobNotFound", err)
	}
}

func TestDirectoryReattachesAfterRestart(t *testing.T) {
	root := t.TempDir()
	logger := log.New(&bytes.Buffer{}, "ERROR", "json")
	ctx := context.Background()

	first, err := NewDirectoryManager(root, DirectoryOptions{}, logger)
	if err != nil {
		t.Fatalf("NewDirectoryManager() error = %v", err)
	}
	if err := first.SetupJob(ctx, "job-1", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}

	// A fresh manager over the same staging root sees the job again.
	second, err := NewDirectoryManager(root, DirectoryOptions{}, logger)
	if err != nil {
		t.Fatalf("NewDirectoryManager() error = %v", err)
	}
	dir, err := second.Directory("job-1")
	if err != nil {
		t.Fatalf("Directory() after restart error = %v", err)
	}
	if !dir.Exists() {
		t.Fatalf("reattached directory does not exist")
	}
}

func TestCleanDirectoryIsIdempotent(t *testing.T) {
	m := newTestDirectoryManager(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-1", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}
	if err := m.CleanDirectory(ctx, "job-1"); err != nil {
		t.Fatalf("CleanDirectory() error = %v", err)
	}
	if err := m.CleanDirectory(ctx, "job-1"); err != nil {
		t.Fatalf("second CleanDirectory() error = %v", err)
	}
}

func TestRecordedReturnCodeRoundTrip(t *testing.T) {
	m := newTestDirectoryManager(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-1", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}

	_, ok, err := m.RecordedReturnCode("job-1")
	if err != nil {
		t.Fatalf("RecordedReturnCode() error = %v", err)
	}
	if ok {
		t.Fatalf("return code reported before any was recorded")
	}

	if err := m.RecordReturnCode("job-1", 42); err != nil {
		t.Fatalf("RecordReturnCode() error = %v", err)
	}
	code, ok, err := m.RecordedReturnCode("job-1")
	if err != nil {
		t.Fatalf("RecordedReturnCode() error = %v", err)
	}
	if !ok || code != 42 {
		t.Fatalf("RecordedReturnCode() = (%d, %v), want (42, true)", code, ok)
	}
}

func TestOutputContentsEmptyBeforeLaunch(t *testing.T) {
	m := newTestDirectoryManager(t)
	ctx := context.Background()

	if err := m.SetupJob(ctx, "job-1", "tool", "1"); err != nil {
		t.Fatalf("SetupJob() error = %v", err)
	}

	out, err := m.StdoutContents(ctx, "job-1")
	if err != nil {
		t.Fatalf("StdoutContents() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("StdoutContents() = %q, want empty", out)
	}
}
