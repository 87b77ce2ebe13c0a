package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Available", statusError, "no", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Available:", "[ERROR] no")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := boolStatusLine("Subprocess available", true, true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
	if !strings.Contains(got, "[OK] yes") {
		t.Fatalf("expected OK badge, got %q", got)
	}
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"not_started": "Not started",
		"failed":      "Failed",
		"":            "",
	}
	for in, want := range cases {
		if got := humanize(in); got != want {
			t.Fatalf("humanize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable("Title", []string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "Title") || !strings.Contains(out, "only") {
		t.Fatalf("unexpected table: %q", out)
	}
	if renderTable("", nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "": false, "maybe\n": false} {
		got, err := confirm(strings.NewReader(input), io.Discard, "Proceed?")
		if err != nil {
			t.Fatalf("confirm(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("confirm(%q) = %v, want %v", input, got, want)
		}
	}
}
