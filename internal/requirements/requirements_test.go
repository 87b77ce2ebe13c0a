package requirements

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coursecast/internal/capability"
	"coursecast/internal/config"
	"coursecast/internal/logging"
	"coursecast/internal/testsupport"
)

func readyConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func newAuditor(t *testing.T, cfg *config.Config) *Auditor {
	t.Helper()
	return NewAuditor(Options{
		Config:      cfg,
		ConfigPath:  filepath.Join(testsupport.BaseDir(cfg), "coursecast.toml"),
		ConfigFound: true,
		DB:          testsupport.MustOpenDB(t, cfg),
		Probe:       capability.NewProbe(cfg, capability.NewMemoryCache(), nil, logging.NewNop()),
	})
}

func find(reqs []Requirement, name string) (Requirement, bool) {
	for _, req := range reqs {
		if req.Name == name {
			return req, true
		}
	}
	return Requirement{}, false
}

func TestCheckAllPassing(t *testing.T) {
	cfg := readyConfig(t, testsupport.WithFakeTranscoder())
	report := newAuditor(t, cfg).Check(context.Background())

	if len(report.Core) != 6 {
		t.Fatalf("expected 6 core requirements, got %d", len(report.Core))
	}
	for _, req := range report.Core {
		if !req.Passed {
			t.Fatalf("core requirement %s failed: %s", req.Name, req.Message)
		}
	}
	if len(report.Optional) != 2 {
		t.Fatalf("expected 2 optional requirements, got %d", len(report.Optional))
	}
	if report.Optional[0].Name != "Subprocess execution" || report.Optional[1].Name != "Transcoder binary" {
		t.Fatalf("unexpected optional requirements: %+v", report.Optional)
	}
	for _, req := range report.Optional {
		if !req.Passed {
			t.Fatalf("optional requirement %s failed: %s", req.Name, req.Message)
		}
	}
	summary := Summarize(report)
	if !summary.Ready || summary.CorePassed != 6 || summary.OptionalPassed != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestOptionalFailuresDoNotBlockReadiness(t *testing.T) {
	cfg := readyConfig(t, testsupport.WithSubprocessDisabled())
	report := newAuditor(t, cfg).Check(context.Background())

	subprocess, _ := find(report.Optional, "Subprocess execution")
	transcoder, _ := find(report.Optional, "Transcoder binary")
	if subprocess.Passed || transcoder.Passed {
		t.Fatalf("expected optional failures, got %+v", report.Optional)
	}
	if subprocess.Impact == "" || transcoder.Impact == "" {
		t.Fatal("expected impact text on optional requirements")
	}
	summary := Summarize(report)
	if !summary.Ready || summary.OptionalFailed != 2 {
		t.Fatalf("expected ready with 2 optional failures, got %+v", summary)
	}
}

func TestMissingDirectoryFailsCore(t *testing.T) {
	cfg := readyConfig(t, testsupport.WithFakeTranscoder())
	auditor := newAuditor(t, cfg)
	if err := os.RemoveAll(cfg.Paths.SourceDir); err != nil {
		t.Fatalf("remove upload dir: %v", err)
	}
	report := auditor.Check(context.Background())
	upload, ok := find(report.Core, "Upload directory")
	if !ok || upload.Passed {
		t.Fatalf("expected upload directory failure, got %+v", upload)
	}
	if !strings.Contains(upload.Message, "does not exist") {
		t.Fatalf("unexpected message %q", upload.Message)
	}
	summary := Summarize(report)
	if summary.Ready || summary.CoreFailed != 1 {
		t.Fatalf("expected not ready with 1 core failure, got %+v", summary)
	}
}

func TestMissingDatabaseAndConfig(t *testing.T) {
	report := NewAuditor(Options{}).Check(context.Background())
	if len(report.Core) != 2 {
		t.Fatalf("expected configuration and database checks only, got %+v", report.Core)
	}
	for _, req := range report.Core {
		if req.Passed {
			t.Fatalf("expected %s to fail", req.Name)
		}
	}
	if Summarize(report).Ready {
		t.Fatal("expected not ready")
	}
}

func TestConfigurationMessageReflectsSource(t *testing.T) {
	cfg := readyConfig(t)
	auditor := NewAuditor(Options{Config: cfg, ConfigPath: "/etc/coursecast.toml"})
	req := auditor.checkConfiguration()
	if !req.Passed || !strings.Contains(req.Message, "using defaults") {
		t.Fatalf("unexpected configuration requirement %+v", req)
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if req := CheckDirectoryAccess("test", dir, AccessWrite); !req.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", req.Message)
	}
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if req := CheckDirectoryAccess("test", file, AccessRead); req.Passed {
		t.Fatal("expected failure for file path")
	}
	if req := CheckDirectoryAccess("test", "", AccessRead); req.Passed || req.Message != "not configured" {
		t.Fatalf("expected not configured failure, got %+v", req)
	}
}
