package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunNoArgsShowsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"openwork"}, &stdout, &stderr)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "Usage:") {
		t.Error("expected usage output")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"openwork", "frobnicate"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "Unknown command: frobnicate") {
		t.Errorf("stdout = %q, want unknown-command message", stdout.String())
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"openwork", "--version"}, &stdout, &stderr)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "openwork") {
		t.Errorf("stdout = %q, want version line", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	for _, arg := range []string{"--help", "-h", "help"} {
		var stdout, stderr bytes.Buffer
		code := run([]string{"openwork", arg}, &stdout, &stderr)
		if code != 0 {
			t.Errorf("%s: exit code = %d, want 0", arg, code)
		}
		if !strings.Contains(stdout.String(), "attach") {
			t.Errorf("%s: usage should list commands", arg)
		}
	}
}

func TestSessionSubcommandRequired(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"openwork", "session"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "session <command>") {
		t.Errorf("stdout = %q, want session usage", stdout.String())
	}
}

func TestPermissionRespondRejectsBadDecision(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"openwork", "permission", "respond", "perm1", "maybe"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "invalid decision") {
		t.Errorf("stderr = %q, want invalid-decision error", stderr.String())
	}
}

func TestPromptRequiresSessionAndText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"openwork", "prompt", "s1"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Errorf("stderr = %q, want usage line", stderr.String())
	}
}
