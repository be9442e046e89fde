package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xavierarpa/openwork/internal/engine"
)

// withDoctorSeams swaps the probe seams for the duration of a test.
func withDoctorSeams(t *testing.T,
	probe func(context.Context, string) (engine.Health, error),
	dial func(context.Context, string) error) {
	t.Helper()
	oldProbe, oldDial := doctorProbe, doctorDialStream
	doctorProbe = probe
	doctorDialStream = dial
	t.Cleanup(func() {
		doctorProbe = oldProbe
		doctorDialStream = oldDial
	})
}

// testConfigFile writes a config pointing the audit db into a temp dir.
func testConfigFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
engine = "127.0.0.1:4096"
audit_db = "` + filepath.Join(dir, "audit.db") + `"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDoctorAllPass(t *testing.T) {
	withDoctorSeams(t,
		func(ctx context.Context, target string) (engine.Health, error) {
			return engine.Health{Version: "0.9.1"}, nil
		},
		func(ctx context.Context, target string) error { return nil },
	)

	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--config", testConfigFile(t), "--json"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0 (stderr: %s)", code, stderr.String())
	}

	var result DoctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if result.Summary.Fail != 0 {
		t.Errorf("failures = %d, want 0: %+v", result.Summary.Fail, result.Checks)
	}
	if result.Summary.Pass != 4 {
		t.Errorf("passes = %d, want 4: %+v", result.Summary.Pass, result.Checks)
	}
}

func TestDoctorEngineUnreachable(t *testing.T) {
	withDoctorSeams(t,
		func(ctx context.Context, target string) (engine.Health, error) {
			return engine.Health{}, errors.New("connection refused")
		},
		func(ctx context.Context, target string) error {
			t.Error("stream check must be skipped when the probe fails")
			return nil
		},
	)

	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--config", testConfigFile(t), "--json"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	var result DoctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	var reach *DoctorCheck
	for i := range result.Checks {
		if result.Checks[i].ID == checkIDEngineReach {
			reach = &result.Checks[i]
		}
		if result.Checks[i].ID == checkIDStream {
			t.Error("stream check present despite failed probe")
		}
	}
	if reach == nil || reach.Status != statusFail {
		t.Errorf("engine.reachability = %+v, want fail", reach)
	}
	if reach != nil && reach.NextAction == "" {
		t.Error("failed check should carry a next action")
	}
}

func TestDoctorMissingConfigFileFails(t *testing.T) {
	withDoctorSeams(t,
		func(ctx context.Context, target string) (engine.Health, error) {
			return engine.Health{Version: "1"}, nil
		},
		func(ctx context.Context, target string) error { return nil },
	)

	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--config", "/nonexistent/config.toml", "--json"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	var result DoctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	found := false
	for _, c := range result.Checks {
		if c.ID == checkIDConfig && c.Status == statusFail {
			found = true
		}
	}
	if !found {
		t.Errorf("checks = %+v, want config.file fail", result.Checks)
	}
}

func TestDoctorHumanOutput(t *testing.T) {
	withDoctorSeams(t,
		func(ctx context.Context, target string) (engine.Health, error) {
			return engine.Health{Version: "0.9.1"}, nil
		},
		func(ctx context.Context, target string) error { return nil },
	)

	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--config", testConfigFile(t)}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	out := stdout.String()
	if !bytes.Contains([]byte(out), []byte("engine.reachability")) {
		t.Errorf("output = %q, want check ids in human output", out)
	}
	if !bytes.Contains([]byte(out), []byte("passed")) {
		t.Errorf("output = %q, want summary line", out)
	}
}
