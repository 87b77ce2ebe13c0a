package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"coursecast/internal/catalog"
	"coursecast/internal/config"
	"coursecast/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("COURSECAST_FFMPEG", "")
	cfg.Transcoder.SearchPaths = []string{filepath.Join(base, "no-such-dir", "ffmpeg")}

	configPath := filepath.Join(base, "coursecast.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// run executes the CLI with stdin fed from input.
func (e *cliTestEnv) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// store opens the database the CLI uses so tests can seed and inspect assets.
func (e *cliTestEnv) store(t *testing.T) *catalog.Store {
	t.Helper()
	return catalog.NewStore(testsupport.MustOpenDB(t, e.cfg))
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	exitErr, ok := err.(*exitError)
	if !ok {
		t.Fatalf("expected exit error with code %d, got %v", code, err)
	}
	if exitErr.code != code {
		t.Fatalf("exit code = %d, want %d", exitErr.code, code)
	}
}

func containsAny(output string, substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(output, s) {
			return true
		}
	}
	return false
}
