package launch

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

func TestStartCapturesOutput(t *testing.T) {
	p := New(Config{})
	if err := p.Start("/bin/sh", "-c", "echo ready; echo second"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not exit")
	}

	lines := p.Lines()
	if len(lines) < 2 {
		t.Fatalf("lines = %v, want at least the two echoed lines", lines)
	}
	found := false
	for _, l := range lines {
		if l == "ready" {
			found = true
		}
	}
	if !found {
		t.Errorf("lines = %v, want to contain %q", lines, "ready")
	}
}

func TestOnOutputCallback(t *testing.T) {
	got := make(chan string, 16)
	p := New(Config{OnOutput: func(line string) { got <- line }})
	if err := p.Start("/bin/sh", "-c", "echo hello-callback"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case line := <-got:
			if line == "hello-callback" {
				return
			}
		case <-deadline:
			t.Fatal("callback never saw the echoed line")
		}
	}
}

func TestStartTwiceFails(t *testing.T) {
	p := New(Config{})
	if err := p.Start("/bin/sh", "-c", "sleep 5"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	err := p.Start("/bin/sh", "-c", "echo nope")
	if !apperrors.IsCode(err, apperrors.CodeLaunchSpawnFailed) {
		t.Errorf("second Start err = %v, want code %s", err, apperrors.CodeLaunchSpawnFailed)
	}
}

func TestStartEmptyCommand(t *testing.T) {
	p := New(Config{})
	err := p.Start("")
	if !apperrors.IsCode(err, apperrors.CodeLaunchSpawnFailed) {
		t.Errorf("err = %v, want code %s", err, apperrors.CodeLaunchSpawnFailed)
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	p := New(Config{})
	if err := p.Start("/bin/sh", "-c", "sleep 30"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop again must be harmless.
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Stop")
	}
	if p.IsRunning() {
		t.Error("IsRunning = true after exit")
	}
}

func TestWaitReadySucceedsOnceProbePasses(t *testing.T) {
	p := New(Config{})
	if err := p.Start("/bin/sh", "-c", "sleep 30"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	attempts := 0
	probe := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.WaitReady(ctx, probe); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if attempts < 3 {
		t.Errorf("attempts = %d, want the probe retried until it passed", attempts)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	p := New(Config{})
	if err := p.Start("/bin/sh", "-c", "sleep 30"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	probe := func(ctx context.Context) error { return errors.New("never ready") }

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	err := p.WaitReady(ctx, probe)
	if !apperrors.IsCode(err, apperrors.CodeLaunchNotReady) {
		t.Errorf("err = %v, want code %s", err, apperrors.CodeLaunchNotReady)
	}
}

func TestWaitReadyFailsWhenEngineExits(t *testing.T) {
	p := New(Config{})
	if err := p.Start("/bin/sh", "-c", "exit 1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	probe := func(ctx context.Context) error { return errors.New("unreachable") }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.WaitReady(ctx, probe)
	if !apperrors.IsCode(err, apperrors.CodeLaunchNotReady) {
		t.Errorf("err = %v, want code %s", err, apperrors.CodeLaunchNotReady)
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, l := range []string{"a", "b", "c", "d"} {
		rb.Write(l)
	}

	lines := rb.Lines()
	if len(lines) != 3 {
		t.Fatalf("size = %d, want 3", len(lines))
	}
	want := []string{"b", "c", "d"}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}
