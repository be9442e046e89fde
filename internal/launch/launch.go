// Package launch starts and supervises a local engine process.
//
// The engine runs under a PTY so it behaves as it would in a real
// terminal (unbuffered output, progress rendering). Output lines are
// kept in a ring buffer and optionally forwarded to a callback; the
// caller polls readiness through the normal health probe.
package launch

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/creack/pty"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// DefaultHistoryLines is the output retention when none is configured.
const DefaultHistoryLines = 1000

// readyPollInterval paces readiness probes in WaitReady.
const readyPollInterval = 250 * time.Millisecond

// Process is one launched engine.
type Process struct {
	// Command and Args are what was spawned, kept for reporting.
	Command string
	Args    []string

	// OnOutput, if set, receives each output line as it arrives.
	OnOutput func(line string)

	cmd    *exec.Cmd
	ptmx   *os.File
	buffer *RingBuffer

	done       chan struct{}
	outputDone chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

// Config holds options for a launched engine.
type Config struct {
	HistoryLines int               // Output lines to retain (default 1000)
	OnOutput     func(line string) // Callback for each output line
}

// New allocates a process; call Start to actually spawn it.
func New(cfg Config) *Process {
	return &Process{
		buffer:     NewRingBuffer(cfg.HistoryLines),
		done:       make(chan struct{}),
		outputDone: make(chan struct{}),
		OnOutput:   cfg.OnOutput,
	}
}

// Start spawns the engine command under a PTY and begins capturing its
// output. Start can be called once per Process.
func (p *Process) Start(command string, args ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return apperrors.New(apperrors.CodeLaunchSpawnFailed, "engine already running")
	}
	if command == "" {
		return apperrors.New(apperrors.CodeLaunchSpawnFailed, "no engine command configured")
	}

	p.Command = command
	p.Args = args
	p.cmd = exec.Command(command, args...)

	ptmx, err := pty.Start(p.cmd)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeLaunchSpawnFailed, "start engine under pty", err)
	}

	p.ptmx = ptmx
	p.running = true

	go p.captureOutput()
	go p.waitForExit()

	return nil
}

// captureOutput reads PTY output, splits it into lines for the ring
// buffer and forwards chunks to the callback.
func (p *Process) captureOutput() {
	defer close(p.outputDone)

	p.mu.Lock()
	ptmx := p.ptmx
	p.mu.Unlock()
	if ptmx == nil {
		return
	}

	buf := make([]byte, 4096)
	var pending strings.Builder

	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := sanitizeUTF8(string(buf[:n]))
			p.bufferLines(chunk, &pending)
		}
		if err != nil {
			if pending.Len() > 0 {
				p.emit(pending.String())
			}
			if err != io.EOF {
				p.mu.Lock()
				p.err = err
				p.mu.Unlock()
			}
			return
		}
	}
}

// bufferLines extracts complete lines from a chunk, carrying partial
// lines over in pending.
func (p *Process) bufferLines(chunk string, pending *strings.Builder) {
	if pending.Len() > 0 {
		chunk = pending.String() + chunk
		pending.Reset()
	}
	for {
		idx := strings.Index(chunk, "\n")
		if idx == -1 {
			pending.WriteString(chunk)
			return
		}
		p.emit(strings.TrimRight(chunk[:idx], "\r"))
		chunk = chunk[idx+1:]
	}
}

func (p *Process) emit(line string) {
	p.buffer.Write(line)
	if p.OnOutput != nil {
		p.OnOutput(line)
	}
}

func (p *Process) waitForExit() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Wait()
	}
	<-p.outputDone

	p.mu.Lock()
	p.running = false
	if p.ptmx != nil {
		p.ptmx.Close()
		p.ptmx = nil
	}
	p.mu.Unlock()

	close(p.done)
}

// Lines returns the retained output, oldest first.
func (p *Process) Lines() []string {
	return p.buffer.Lines()
}

// Done is closed when the engine process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning reports whether the engine is still up.
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Err returns any output-capture error.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop terminates the engine forcefully. Safe to call more than once.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	if p.ptmx != nil {
		p.ptmx.Close()
		p.ptmx = nil
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	return nil
}

// WaitReady polls probe until it succeeds, ctx expires, or the engine
// exits. probe is typically the health call against the launched
// engine's address.
func (p *Process) WaitReady(ctx context.Context, probe func(context.Context) error) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.CodeLaunchNotReady, "engine did not become ready", firstNonNil(lastErr, ctx.Err()))
		case <-p.done:
			return apperrors.New(apperrors.CodeLaunchNotReady, "engine exited before becoming ready")
		case <-ticker.C:
			if err := probe(ctx); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
	}
}

func firstNonNil(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// sanitizeUTF8 replaces invalid byte sequences so lines stay printable
// and JSON-safe.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	result := make([]rune, 0, len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		result = append(result, r)
		s = s[size:]
	}
	return string(result)
}
