// Package tunnel manages the single remote-testing tunnel a build may hold.
//
// A Manager owns at most one active Session. Setup waits for the external
// handshake; when it fails nothing is left to tear down. Once Setup succeeds
// the owner must call Teardown exactly once, which With does on every exit
// path.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/buildgrid/internal/ctxlog"
)

// ErrSessionAlreadyActive is returned by Setup while another session is up.
var ErrSessionAlreadyActive = errors.New("a tunnel session is already active")

// ErrMissingCredentials is wrapped in a SetupError when credentials are empty.
var ErrMissingCredentials = errors.New("tunnel credentials are missing")

// Credentials identify the account and the tunnel instance.
type Credentials struct {
	Username  string
	AccessKey string
	TunnelID  string
}

// Validate reports missing username or access key.
func (c Credentials) Validate() error {
	if c.Username == "" || c.AccessKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// SetupError wraps a failed handshake.
type SetupError struct {
	TunnelID string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("tunnel %q setup failed: %v", e.TunnelID, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Conn is a live tunnel as returned by a Launcher.
type Conn interface {
	Close() error
}

// Launcher performs the external handshake. Launch returns once the tunnel
// is ready or the handshake failed; on failure it must not leave anything
// running.
type Launcher interface {
	Launch(ctx context.Context, creds Credentials) (Conn, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, creds Credentials) (Conn, error)

func (f LauncherFunc) Launch(ctx context.Context, creds Credentials) (Conn, error) {
	return f(ctx, creds)
}

// Session is an established tunnel. It is owned by whoever called Setup.
type Session struct {
	ID          string
	Credentials Credentials

	conn     Conn
	closeErr error
	once     sync.Once
}

// Manager guards the single-active-session invariant.
type Manager struct {
	launcher Launcher

	mu      sync.Mutex
	active  *Session
	pending bool
}

// NewManager returns a Manager that establishes tunnels with launcher.
func NewManager(launcher Launcher) *Manager {
	return &Manager{launcher: launcher}
}

// Active returns the active session, if any.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Setup establishes a tunnel and blocks until it is ready. An empty TunnelID
// is replaced by a generated one.
func (m *Manager) Setup(ctx context.Context, creds Credentials) (*Session, error) {
	m.mu.Lock()
	if m.active != nil || m.pending {
		m.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	m.pending = true
	m.mu.Unlock()

	if creds.TunnelID == "" {
		creds.TunnelID = uuid.NewString()
	}
	ctx, logger := ctxlog.WithAttrs(ctx, "tunnel_id", creds.TunnelID)

	conn, err := m.establish(ctx, creds)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = false
	if err != nil {
		logger.Error("Tunnel setup failed.", "error", err)
		return nil, &SetupError{TunnelID: creds.TunnelID, Err: err}
	}

	s := &Session{ID: creds.TunnelID, Credentials: creds, conn: conn}
	m.active = s
	logger.Info("🔌 Tunnel is up")
	return s, nil
}

func (m *Manager) establish(ctx context.Context, creds Credentials) (Conn, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("▶️ Opening tunnel", "username", creds.Username)
	return m.launcher.Launch(ctx, creds)
}

// Teardown closes s and clears the active slot. Repeated calls return the
// first result without closing again.
func (m *Manager) Teardown(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		ctxlog.FromContext(ctx).Info("🔥 Closing tunnel", "tunnel_id", s.ID)
		if s.conn != nil {
			s.closeErr = s.conn.Close()
		}
		m.mu.Lock()
		if m.active == s {
			m.active = nil
		}
		m.mu.Unlock()
	})
	return s.closeErr
}

// With sets up a tunnel, runs fn and tears the tunnel down however fn exits,
// including by panic. A failed setup returns before fn and tears nothing down.
func (m *Manager) With(ctx context.Context, creds Credentials, fn func(ctx context.Context, s *Session) error) (err error) {
	s, err := m.Setup(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		if tdErr := m.Teardown(ctx, s); tdErr != nil {
			err = errors.Join(err, fmt.Errorf("tunnel teardown: %w", tdErr))
		}
	}()
	return fn(ctx, s)
}
