package tunnel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/process"
)

// ErrReadyTimeout is returned when the tunnel binary never reports readiness.
var ErrReadyTimeout = errors.New("timed out waiting for tunnel readiness")

// ProcessLauncher runs the tunnel client as a child process. Credentials are
// passed through the environment, never on the command line.
type ProcessLauncher struct {
	Orchestrator *process.Orchestrator
	Program      string
	Args         []string
	// ReadyLine is matched as a substring of the client's stdout.
	ReadyLine string
	Timeout   time.Duration
	Dir       string
}

// Launch starts the client and waits for ReadyLine. The child is killed if
// it does not become ready in time.
func (l *ProcessLauncher) Launch(ctx context.Context, creds Credentials) (Conn, error) {
	logger := ctxlog.FromContext(ctx)

	ready := make(chan struct{})
	var readyOnce sync.Once
	onLine := func(line string) {
		logger.Debug("tunnel", "line", line)
		if l.ReadyLine != "" && strings.Contains(line, l.ReadyLine) {
			readyOnce.Do(func() { close(ready) })
		}
	}

	h, err := l.Orchestrator.Spawn(ctx, l.Program, l.Args, process.Discard,
		process.WithDir(l.Dir),
		process.WithEnv(
			"SAUCE_USERNAME="+creds.Username,
			"SAUCE_ACCESS_KEY="+creds.AccessKey,
			"SAUCE_TUNNEL_ID="+creds.TunnelID,
		),
		process.WithLineObserver(onLine),
	)
	if err != nil {
		return nil, err
	}
	if l.ReadyLine == "" {
		return &processConn{orch: l.Orchestrator, handle: h}, nil
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return &processConn{orch: l.Orchestrator, handle: h}, nil
	case <-h.Done():
		if _, err := l.Orchestrator.AwaitExit(h); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s exited before reporting readiness", l.Program)
	case <-timer.C:
		_ = h.Kill()
		<-h.Done()
		return nil, fmt.Errorf("%w after %s", ErrReadyTimeout, timeout)
	}
}

type processConn struct {
	orch   *process.Orchestrator
	handle *process.Handle
}

// Close stops the client and waits for it to exit. A kill-induced exit is
// the expected outcome and not reported.
func (c *processConn) Close() error {
	if _, exited := c.handle.ExitCode(); exited {
		_, err := c.orch.AwaitExit(c.handle)
		return err
	}
	if err := c.handle.Kill(); err != nil {
		return err
	}
	<-c.handle.Done()
	return nil
}
