package staging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestJobDir(t *testing.T, jobID string) *JobDirectory {
	t.Helper()
	dir, err := NewJobDirectory(t.TempDir(), jobID)
	if err != nil {
		t.Fatalf("NewJobDirectory() error = %v", err)
	}
	return dir
}

func TestValidateJobID(t *testing.T) {
	valid := []string{"123", "job-a", "f2c1260f-7a67-4881-9fecf-2c2d612e0ec1", "a.b"}
	for _, id := range valid {
		if err := ValidateJobID(id); err != nil {
			t.Fatalf("ValidateJobID(%q) error = %v, want nil", id, err)
		}
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "../escape", "a/..", "./a"}
	for _, id := range invalid {
		if err := ValidateJobID(id); !errors.Is(err, ErrInvalidJobID) {
			t.Fatalf("ValidateJobID(%q) error = %v, want ErrInvalidJobID", id, err)
		}
	}
}

func TestNewJobDirectoryRejectsBadID(t *testing.T) {
	if _, err := NewJobDirectory(t.TempDir(), "../escape"); !errors.Is(err, ErrInvalidJobID) {
		t.Fatalf("NewJobDirectory() error = %v, want ErrInvalidJobID", err)
	}
}

func TestSetupCreatesRootOnce(t *testing.T) {
	dir := newTestJobDir(t, "job-1")

	if dir.Exists() {
		t.Fatalf("Exists() = true before Setup()")
	}
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !dir.Exists() {
		t.Fatalf("Exists() = false after Setup()")
	}

	// A second setup must fail loudly rather than silently reuse state.
	if err := dir.Setup(); err == nil {
		t.Fatalf("Setup() on existing root succeeded, want error")
	}
}

func TestSetupFailsWithoutStagingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "never-created")
	dir, err := NewJobDirectory(missing, "job-1")
	if err != nil {
		t.Fatalf("NewJobDirectory() error = %v", err)
	}
	if err := dir.Setup(); err == nil {
		t.Fatalf("Setup() with missing staging root succeeded, want error")
	}
}

func TestSubareaAccessorsIdempotent(t *testing.T) {
	dir := newTestJobDir(t, "job-1")
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	accessors := map[string]func() (string, error){
		"working":      dir.Working,
		"inputs":       dir.Inputs,
		"outputs":      dir.Outputs,
		"configs":      dir.Configs,
		"tool_files":   dir.ToolFiles,
		"unstructured": dir.Unstructured,
	}
	for name, accessor := range accessors {
		first, err := accessor()
		if err != nil {
			t.Fatalf("%s() error = %v", name, err)
		}
		if want := filepath.Join(dir.Path(), name); first != want {
			t.Fatalf("%s() = %q, want %q", name, first, want)
		}

		second, err := accessor()
		if err != nil {
			t.Fatalf("%s() second call error = %v", name, err)
		}
		if second != first {
			t.Fatalf("%s() second call = %q, want %q", name, second, first)
		}
	}
}

func TestControlFileRoundTrip(t *testing.T) {
	dir := newTestJobDir(t, "job-1")
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	path, err := dir.WriteFile("tool_id", "cat1")
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if want := filepath.Join(dir.Path(), "tool_id"); path != want {
		t.Fatalf("WriteFile() path = %q, want %q", path, want)
	}

	got, err := dir.ReadFile("tool_id")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "cat1" {
		t.Fatalf("ReadFile() = %q, want %q", got, "cat1")
	}
	if !dir.ContainsFile("tool_id") {
		t.Fatalf("ContainsFile() = false for written file")
	}

	dir.RemoveFile("tool_id")
	if dir.ContainsFile("tool_id") {
		t.Fatalf("ContainsFile() = true after RemoveFile()")
	}
	// Removing again stays quiet.
	dir.RemoveFile("tool_id")
}

func TestReadFileMissing(t *testing.T) {
	dir := newTestJobDir(t, "job-1")
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if _, err := dir.ReadFile("absent"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("ReadFile(absent) error = %v, want ErrFileNotFound", err)
	}

	got, err := dir.ReadFileDefault("absent", []byte("fallback"))
	if err != nil {
		t.Fatalf("ReadFileDefault() error = %v", err)
	}
	if string(got) != "fallback" {
		t.Fatalf("ReadFileDefault() = %q, want %q", got, "fallback")
	}
}

func TestOpenFileAppend(t *testing.T) {
	dir := newTestJobDir(t, "job-1")
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	f, err := dir.OpenFile("stdout", os.O_CREATE|os.O_WRONLY|os.O_APPEND)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if _, err := f.WriteString("line\n"); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := dir.ReadFile("stdout")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "line\n" {
		t.Fatalf("ReadFile() = %q, want %q", got, "line\n")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	dir := newTestJobDir(t, "job-1")
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := dir.WriteFile("marker", "x"); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := dir.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if dir.Exists() {
		t.Fatalf("Exists() = true after Delete()")
	}
	if err := dir.Delete(); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestMakeDirectory(t *testing.T) {
	dir := newTestJobDir(t, "job-1")
	if err := dir.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	p, err := dir.MakeDirectory("extra")
	if err != nil {
		t.Fatalf("MakeDirectory() error = %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("MakeDirectory() result is not a directory")
	}

	if _, err := dir.MakeDirectory("../evil"); !errors.Is(err, ErrOutsideSandbox) {
		t.Fatalf("MakeDirectory(../evil) error = %v, want ErrOutsideSandbox", err)
	}
}
