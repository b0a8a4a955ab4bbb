package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
staging:
  root: /tmp/staging
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "runstage" {
		t.Errorf("Service.Name = %q, want runstage", cfg.Service.Name)
	}
	if cfg.Service.LogLevel != "info" {
		t.Errorf("Service.LogLevel = %q, want info", cfg.Service.LogLevel)
	}
	if cfg.Manager.Kind != "local" {
		t.Errorf("Manager.Kind = %q, want local", cfg.Manager.Kind)
	}
	if cfg.Manager.Workers != 2 {
		t.Errorf("Manager.Workers = %d, want 2", cfg.Manager.Workers)
	}
	if cfg.Staging.Root != "/tmp/staging" {
		t.Errorf("Staging.Root = %q, want /tmp/staging", cfg.Staging.Root)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("Load() of missing file succeeded, want error")
	}
}

func TestLoadInterpolatesEnv(t *testing.T) {
	t.Setenv("RUNSTAGE_TEST_ROOT", "/srv/jobs")
	path := writeConfig(t, `
staging:
  root: ${RUNSTAGE_TEST_ROOT}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Staging.Root != "/srv/jobs" {
		t.Errorf("Staging.Root = %q, want /srv/jobs", cfg.Staging.Root)
	}
}

func TestLoadRejectsUnknownManagerKind(t *testing.T) {
	path := writeConfig(t, `
manager:
  kind: slurm
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load() with unknown manager kind succeeded, want error")
	}
	if !strings.Contains(err.Error(), "manager.kind") {
		t.Errorf("error %q does not mention manager.kind", err)
	}
}

func TestLoadCLIRequiresSubmitTemplate(t *testing.T) {
	path := writeConfig(t, `
manager:
  kind: cli
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() of cli backend without submit template succeeded, want error")
	}
}

func TestLoadSchedulerTemplates(t *testing.T) {
	path := writeConfig(t, `
manager:
  kind: cli
  scheduler:
    submit: "qsub {script}"
    status: "qstat {id}"
    kill: "qdel {id}"
    status_map:
      Q: queued
      R: running
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Manager.Scheduler.Submit != "qsub {script}" {
		t.Errorf("Scheduler.Submit = %q", cfg.Manager.Scheduler.Submit)
	}
	if cfg.Manager.Scheduler.StatusMap["R"] != "running" {
		t.Errorf("StatusMap[R] = %q, want running", cfg.Manager.Scheduler.StatusMap["R"])
	}
}

func TestLoadRejectsBadOctal(t *testing.T) {
	path := writeConfig(t, `
staging:
  root: /tmp/staging
  fixup_mode: "0999"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() with bad octal mode succeeded, want error")
	}
}

func TestLoadRejectsUnresolvedAPIKey(t *testing.T) {
	path := writeConfig(t, `
api:
  enabled: true
  listen: 127.0.0.1:8913
  auth:
    api_key: ${RUNSTAGE_TEST_MISSING_KEY}
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load() with unresolved api key succeeded, want error")
	}
	if !strings.Contains(err.Error(), "RUNSTAGE_TEST_MISSING_KEY") {
		t.Errorf("error %q does not name the missing variable", err)
	}
}

func TestParseOctal(t *testing.T) {
	mode, err := ParseOctal("0644")
	if err != nil {
		t.Fatalf("ParseOctal(0644) error = %v", err)
	}
	if mode != 0o644 {
		t.Errorf("ParseOctal(0644) = %o, want 644", mode)
	}
	if mode, err := ParseOctal(""); err != nil || mode != 0 {
		t.Errorf("ParseOctal(\"\") = (%o, %v), want (0, nil)", mode, err)
	}
}

func TestDiscoverConfigPathEnv(t *testing.T) {
	path := writeConfig(t, "service:\n  name: runstage\n")
	t.Setenv("RUNSTAGE_CONFIG", path)
	got, err := DiscoverConfigPath()
	if err != nil {
		t.Fatalf("DiscoverConfigPath() error = %v", err)
	}
	if got != path {
		t.Errorf("DiscoverConfigPath() = %q, want %q", got, path)
	}
}
