package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"coursecast/internal/config"
	"coursecast/internal/services"
)

// defaultWaitDelay bounds how long Run waits for output pipes after the
// process is killed.
const defaultWaitDelay = 5 * time.Second

// Runner executes external programs and returns their stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec when subprocess execution is enabled.
type ExecRunner struct {
	allow     bool
	waitDelay time.Duration
}

// NewRunner builds a runner honoring transcoder.allow_subprocess.
func NewRunner(cfg *config.Config) *ExecRunner {
	allow := false
	if cfg != nil {
		allow = cfg.Transcoder.AllowSubprocess
	}
	return &ExecRunner{allow: allow, waitDelay: defaultWaitDelay}
}

// Allowed reports whether the runner will spawn processes.
func (r *ExecRunner) Allowed() bool {
	return r != nil && r.allow
}

// Run executes name with args. Stdout is returned; stderr is attached to the
// error when the process fails.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if !r.Allowed() {
		return nil, services.Wrap(services.ErrCapabilityUnavailable, "command", "run "+name, "subprocess execution is disabled", nil)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = r.waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	runErr := &RunError{Name: name, Err: err, Stderr: stderr.String()}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return stdout.Bytes(), services.Wrap(services.ErrTimeout, "command", "run "+name, "deadline exceeded", runErr)
	}
	return stdout.Bytes(), runErr
}

// RunError describes a failed process execution.
type RunError struct {
	Name   string
	Err    error
	Stderr string
}

// maxStderrTail bounds the stderr excerpt rendered in error messages.
const maxStderrTail = 1024

func (e *RunError) Error() string {
	tail := Tail(e.Stderr, maxStderrTail)
	if tail == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, tail)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Tail returns the last max bytes of output, trimmed and starting on a line
// boundary when possible.
func Tail(output string, max int) string {
	output = strings.TrimSpace(output)
	if max <= 0 || len(output) <= max {
		return output
	}
	cut := output[len(output)-max:]
	if idx := strings.IndexByte(cut, '\n'); idx >= 0 && idx < len(cut)-1 {
		cut = cut[idx+1:]
	}
	return strings.TrimSpace(cut)
}
