package notify

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/config"
)

func TestNewLiveReload_Defaults(t *testing.T) {
	n := NewLiveReload(config.LiveReload{URL: "http://localhost:35729"})
	assert.Equal(t, "/", n.namespace)
	assert.Equal(t, "reload", n.event)

	n = NewLiveReload(config.LiveReload{URL: "http://localhost:35729", Namespace: "/dev", Event: "changed"})
	assert.Equal(t, "/dev", n.namespace)
	assert.Equal(t, "changed", n.event)
}

func TestLiveReload_UnreachableServer(t *testing.T) {
	// Reserve a port and release it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	n := NewLiveReload(config.LiveReload{URL: "http://" + addr})
	n.timeout = 500 * time.Millisecond
	t.Cleanup(func() { _ = n.Close() })

	err = n.Notify(context.Background(), []string{"sass"})
	assert.Error(t, err)
}

func TestLiveReload_RetryReusesSocket(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	n := NewLiveReload(config.LiveReload{URL: "http://" + addr})
	n.timeout = 300 * time.Millisecond
	t.Cleanup(func() { _ = n.Close() })

	require.Error(t, n.Notify(context.Background(), []string{"sass"}))
	io, handshake := n.io, n.handshake
	require.NotNil(t, io)

	require.Error(t, n.Notify(context.Background(), []string{"sass"}))
	assert.Same(t, io, n.io, "a retry must not build a second socket")
	assert.Equal(t, handshake, n.handshake, "a retry must not replace the handshake channel")
	assert.Equal(t, 1, cap(n.handshake))
}

func TestLiveReload_BadURL(t *testing.T) {
	n := NewLiveReload(config.LiveReload{URL: "://nope"})
	err := n.Notify(context.Background(), nil)
	assert.ErrorContains(t, err, "failed to parse URL")
}

func TestLiveReload_Closed(t *testing.T) {
	n := NewLiveReload(config.LiveReload{URL: "http://localhost:1"})
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Notify(context.Background(), []string{"docs"}), ErrClosed)
}

func TestFunc(t *testing.T) {
	var got []string
	var n Notifier = Func(func(_ context.Context, tasks []string) error {
		got = tasks
		return nil
	})
	require.NoError(t, n.Notify(context.Background(), []string{"bundle"}))
	assert.Equal(t, []string{"bundle"}, got)
}
