// Package process spawns and supervises external commands. Success is
// decided by exit code alone; a nonzero exit is always surfaced as a
// *ProcessFailure and never retried.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// IOMode selects what happens to a child's standard streams.
type IOMode int

const (
	// Inherit forwards the child's output to the orchestrator's streams.
	Inherit IOMode = iota
	// Capture buffers stdout for the caller; nothing is printed.
	Capture
	// Discard drops stdout; only a line observer sees it. Long-lived
	// children use it so their output is not held in memory.
	Discard
)

func (m IOMode) String() string {
	switch m {
	case Inherit:
		return "inherit"
	case Capture:
		return "capture"
	case Discard:
		return "discard"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// stderrTail bounds how much stderr is kept for failure reports.
const stderrTail = 4 << 10

// ProcessFailure is returned when a command exits with a nonzero code.
// ExitCode is -1 when the process was killed by a signal.
type ProcessFailure struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessFailure) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + lastLine(tail)
	}
	return msg
}

// Handle tracks one spawned process until its exit is observed.
type Handle struct {
	Command string
	Args    []string
	Started time.Time

	cmd      *exec.Cmd
	done     chan struct{}
	exitCode atomic.Int32
	waitErr  error

	stdout *bytes.Buffer
	stderr *tailBuffer
	lines  *lineWriter
}

// PID returns the process ID, or -1 before the process started.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return -1
	}
	return h.cmd.Process.Pid
}

// ExitCode returns the exit code and whether the process has exited.
func (h *Handle) ExitCode() (int, bool) {
	select {
	case <-h.done:
		return int(h.exitCode.Load()), true
	default:
		return -1, false
	}
}

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stdout returns the captured standard output. It is empty unless the mode
// is Capture and only complete after exit.
func (h *Handle) Stdout() []byte {
	if h.stdout == nil {
		return nil
	}
	<-h.done
	return h.stdout.Bytes()
}

// Kill terminates the process. It is meant for teardown paths; killing an
// exited process is a no-op.
func (h *Handle) Kill() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	if h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", h.Command, err)
	}
	return nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	if h.lines != nil {
		h.lines.flush()
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	h.waitErr = err
	h.exitCode.Store(int32(code))
	close(h.done)
}

// Orchestrator spawns processes. The zero value is not usable; call New.
type Orchestrator struct {
	stdout io.Writer
	stderr io.Writer
	env    []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOutput sets the streams Inherit-mode children write to.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithBaseEnv replaces the environment every child starts from. By default
// children inherit the current process environment.
func WithBaseEnv(env []string) Option {
	return func(o *Orchestrator) {
		o.env = env
	}
}

// New returns an Orchestrator writing inherited output to os.Stdout and
// os.Stderr.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type spawnConfig struct {
	dir    string
	env    []string
	stdin  io.Reader
	onLine func(string)
}

// SpawnOption customises a single spawn.
type SpawnOption func(*spawnConfig)

// WithDir sets the working directory.
func WithDir(dir string) SpawnOption {
	return func(c *spawnConfig) { c.dir = dir }
}

// WithEnv appends KEY=value pairs to the child's environment.
func WithEnv(kv ...string) SpawnOption {
	return func(c *spawnConfig) { c.env = append(c.env, kv...) }
}

// WithStdin feeds r to the child's standard input.
func WithStdin(r io.Reader) SpawnOption {
	return func(c *spawnConfig) { c.stdin = r }
}

// WithLineObserver calls fn for every line the child writes to stdout, in
// either mode. Calls are sequential.
func WithLineObserver(fn func(line string)) SpawnOption {
	return func(c *spawnConfig) { c.onLine = fn }
}

// Spawn starts command. It returns once the process is running; use
// AwaitExit to observe the outcome. There is no context-driven cancellation:
// ctx only scopes logging.
func (o *Orchestrator) Spawn(ctx context.Context, command string, args []string, mode IOMode, opts ...SpawnOption) (*Handle, error) {
	var cfg spawnConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = cfg.dir
	cmd.Stdin = cfg.stdin
	if o.env != nil || len(cfg.env) > 0 {
		base := o.env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(append([]string(nil), base...), cfg.env...)
	}

	h := &Handle{
		Command: command,
		Args:    append([]string(nil), args...),
		cmd:     cmd,
		done:    make(chan struct{}),
		stderr:  &tailBuffer{limit: stderrTail},
	}
	h.exitCode.Store(-1)

	var stdout io.Writer
	switch mode {
	case Capture:
		h.stdout = &bytes.Buffer{}
		stdout = h.stdout
		cmd.Stderr = h.stderr
	case Discard:
		stdout = io.Discard
		cmd.Stderr = h.stderr
	default:
		stdout = o.stdout
		cmd.Stderr = io.MultiWriter(o.stderr, h.stderr)
	}
	if cfg.onLine != nil {
		h.lines = &lineWriter{fn: cfg.onLine}
		stdout = io.MultiWriter(stdout, h.lines)
	}
	cmd.Stdout = stdout

	logger := ctxlog.FromContext(ctx).With("command", command)
	logger.Debug("Spawning process.", "args", args, "mode", mode.String(), "dir", cfg.dir)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}
	h.Started = time.Now()
	logger.Debug("Process started.", "pid", h.PID())

	go h.wait()
	return h, nil
}

// AwaitExit blocks until h exits and returns its exit code. A nonzero code
// is reported as *ProcessFailure.
func (o *Orchestrator) AwaitExit(h *Handle) (int, error) {
	<-h.done
	code := int(h.exitCode.Load())
	if code == 0 && h.waitErr == nil {
		return 0, nil
	}
	return code, &ProcessFailure{Command: h.Command, ExitCode: code, Stderr: h.stderr.String()}
}

// Run spawns command and waits for it.
func (o *Orchestrator) Run(ctx context.Context, command string, args []string, mode IOMode, opts ...SpawnOption) (*Handle, error) {
	h, err := o.Spawn(ctx, command, args, mode, opts...)
	if err != nil {
		return nil, err
	}
	code, err := o.AwaitExit(h)
	ctxlog.FromContext(ctx).Debug("Process exited.", "command", command, "exit_code", code, "runtime", time.Since(h.Started))
	return h, err
}

// lineWriter splits a byte stream into lines.
type lineWriter struct {
	mu  sync.Mutex
	buf []byte
	fn  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = nil
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
