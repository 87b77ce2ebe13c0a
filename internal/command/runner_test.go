package command_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coursecast/internal/command"
	"coursecast/internal/services"
	"coursecast/internal/testsupport"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunReturnsStdout(t *testing.T) {
	runner := command.NewRunner(testsupport.NewConfig(t))
	tool := writeScript(t, "echo hello\necho noise >&2\n")
	out, err := runner.Run(context.Background(), tool)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Fatalf("unexpected stdout %q", out)
	}
}

func TestRunFailureIncludesStderr(t *testing.T) {
	runner := command.NewRunner(testsupport.NewConfig(t))
	tool := writeScript(t, "echo 'Invalid data found' >&2\nexit 3\n")
	_, err := runner.Run(context.Background(), tool)
	var runErr *command.RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr in error, got %q", err.Error())
	}
}

func TestRunDisabled(t *testing.T) {
	runner := command.NewRunner(testsupport.NewConfig(t, testsupport.WithSubprocessDisabled()))
	if runner.Allowed() {
		t.Fatal("expected runner to be disabled")
	}
	_, err := runner.Run(context.Background(), "true")
	if !errors.Is(err, services.ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
}

func TestRunDeadline(t *testing.T) {
	runner := command.NewRunner(testsupport.NewConfig(t))
	tool := writeScript(t, "exec sleep 5\n")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := runner.Run(ctx, tool)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTail(t *testing.T) {
	if got := command.Tail("  short \n", 100); got != "short" {
		t.Fatalf("unexpected tail %q", got)
	}
	long := "first line\nsecond line\nthird line"
	if got := command.Tail(long, 14); got != "third line" {
		t.Fatalf("expected line-aligned tail, got %q", got)
	}
}
