// Package notify tells connected browsers that a watch-triggered rebuild
// finished, over a socket.io live-reload channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Notifier is told which tasks a successful rebuild ran.
type Notifier interface {
	Notify(ctx context.Context, tasks []string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, tasks []string) error

func (f Func) Notify(ctx context.Context, tasks []string) error {
	return f(ctx, tasks)
}

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("live-reload notifier is closed")

// LiveReload keeps one socket.io connection open for the life of a watch
// session and emits an event per rebuild.
type LiveReload struct {
	url       string
	namespace string
	event     string
	timeout   time.Duration

	mu        sync.Mutex
	io        *socket.Socket
	handshake chan error
	connected atomic.Bool
	closed    bool
}

// NewLiveReload returns a notifier for cfg. Nothing connects until the first
// Notify.
func NewLiveReload(cfg config.LiveReload) *LiveReload {
	ns := cfg.Namespace
	if ns == "" {
		ns = "/"
	}
	event := cfg.Event
	if event == "" {
		event = "reload"
	}
	return &LiveReload{url: cfg.URL, namespace: ns, event: event, timeout: 10 * time.Second}
}

// Notify emits the reload event with the names of the rebuilt tasks.
func (n *LiveReload) Notify(ctx context.Context, tasks []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}

	logger := ctxlog.FromContext(ctx).With("notifier", "livereload", "url", n.url)
	if !n.connected.Load() {
		if err := n.connect(ctx); err != nil {
			return err
		}
	}

	logger.Info("🔄 Emitting live-reload event", "event", n.event, "tasks", tasks)
	n.io.Emit(n.event, map[string]any{"tasks": tasks})
	return nil
}

// connect dials the server and waits for the handshake. Callers hold n.mu.
func (n *LiveReload) connect(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	parsedURL, err := url.Parse(n.url)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	if n.io == nil {
		n.io = socket.NewManager(baseURL, opts).Socket(n.namespace, opts)
		n.handshake = make(chan error, 1)
		n.attach(logger)
	}

	// Drop any outcome left over from an earlier attempt.
	select {
	case <-n.handshake:
	default:
	}

	n.io.Connect()

	opCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	select {
	case err := <-n.handshake:
		if err != nil {
			return fmt.Errorf("live-reload connect: %w", err)
		}
		return nil
	case <-opCtx.Done():
		return fmt.Errorf("timed out while waiting for live-reload connection")
	}
}

// attach registers the socket's lifecycle handlers. It runs once per socket;
// every connect attempt then waits on n.handshake.
func (n *LiveReload) attach(logger *slog.Logger) {
	n.io.On(types.EventName("connect"), func(...any) {
		n.connected.Store(true)
		logger.Debug("Live-reload channel connected.", "sid", n.io.Id())
		n.signal(nil)
	})
	n.io.On(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		n.signal(err)
	})
	n.io.On(types.EventName("disconnect"), func(...any) {
		n.connected.Store(false)
	})
}

func (n *LiveReload) signal(err error) {
	select {
	case n.handshake <- err:
	default:
	}
}

// Close disconnects. Further Notify calls fail with ErrClosed.
func (n *LiveReload) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.io != nil {
		n.io.Disconnect()
	}
	return nil
}
