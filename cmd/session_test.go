package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xavierarpa/openwork/internal/engine"
)

// fakeEngineAddr starts a minimal engine HTTP API and returns its
// host:port.
func fakeEngineAddr(t *testing.T) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]engine.Session{
			{ID: "s1", Title: "refactor storage", Directory: "/work/app"},
			{ID: "s2"},
		})
	})
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		title, _ := body["title"].(string)
		json.NewEncoder(w).Encode(engine.Session{ID: "s-new", Title: title})
	})
	mux.HandleFunc("GET /api/permissions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]engine.PermissionRequest{
			{ID: "perm1", SessionID: "s1", Permission: "bash", Patterns: []string{"go test *"}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	return u.Host
}

func TestSessionListAgainstEngine(t *testing.T) {
	addr := fakeEngineAddr(t)

	var stdout, stderr bytes.Buffer
	code := runSession([]string{"list", "--engine", addr}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "s1") || !strings.Contains(out, "refactor storage") {
		t.Errorf("output = %q, want session listing", out)
	}
	if !strings.Contains(out, "(untitled)") {
		t.Errorf("output = %q, want untitled placeholder for s2", out)
	}
}

func TestSessionNewAgainstEngine(t *testing.T) {
	addr := fakeEngineAddr(t)

	var stdout, stderr bytes.Buffer
	code := runSession([]string{"new", "--engine", addr, "--title", "spike"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "s-new") {
		t.Errorf("output = %q, want the created session id", stdout.String())
	}
}

func TestPermissionListAgainstEngine(t *testing.T) {
	addr := fakeEngineAddr(t)

	var stdout, stderr bytes.Buffer
	code := runPermission([]string{"list", "--engine", addr}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d (stderr: %s)", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "perm1") || !strings.Contains(out, "bash") {
		t.Errorf("output = %q, want pending permission listing", out)
	}
}

func TestSessionListEngineDown(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSession([]string{"list", "--engine", "127.0.0.1:1"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q, want an error line", stderr.String())
	}
}
