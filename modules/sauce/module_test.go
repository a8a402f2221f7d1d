package sauce

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/tunnel"
)

type fakeConn struct{ closes *atomic.Int32 }

func (c fakeConn) Close() error {
	c.closes.Add(1)
	return nil
}

// newRegistry registers the module plus a stand-in protractor-sauce task.
func newRegistry(t *testing.T, creds tunnel.Credentials, suite error) (*registry.Registry, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var launches, closes atomic.Int32

	r := registry.New(dag.New(), config.Default(t.TempDir()), pipeline.Variant{}, registry.Options{Tunnel: creds})
	r.Tunnels = tunnel.NewManager(tunnel.LauncherFunc(func(context.Context, tunnel.Credentials) (tunnel.Conn, error) {
		launches.Add(1)
		return fakeConn{closes: &closes}, nil
	}))
	(&Module{}).Register(r)
	r.RegisterTask("protractor-sauce", []string{"sauce-connect"}, dag.Sync(func(context.Context) error {
		assert.NotNil(t, r.Tunnels.Active())
		return suite
	}))
	return r, &launches, &closes
}

var creds = tunnel.Credentials{Username: "ionic", AccessKey: "key", TunnelID: "42"}

func TestCloudtest_TearsDownOnce(t *testing.T) {
	r, launches, closes := newRegistry(t, creds, nil)

	result, err := r.Graph.Run(context.Background(), "cloudtest")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, int32(1), launches.Load())
	assert.Equal(t, int32(1), closes.Load())
	assert.Nil(t, r.Tunnels.Active())
}

func TestCloudtest_SuiteFailureStillTearsDown(t *testing.T) {
	r, _, closes := newRegistry(t, creds, errors.New("2 specs failed"))

	result, err := r.Graph.Run(context.Background(), "cloudtest")
	require.Error(t, err)
	assert.Equal(t, dag.Skipped, result.Status("cloudtest"))
	assert.Equal(t, int32(1), closes.Load())
	assert.Nil(t, r.Tunnels.Active())
}

func TestSauceConnect_SetupFailureSkipsTeardown(t *testing.T) {
	r, launches, closes := newRegistry(t, tunnel.Credentials{}, nil)

	result, err := r.Graph.Run(context.Background(), "cloudtest")
	require.Error(t, err)
	assert.ErrorIs(t, err, tunnel.ErrMissingCredentials)
	assert.Equal(t, dag.Failed, result.Status("sauce-connect"))
	assert.Equal(t, dag.Skipped, result.Status("protractor-sauce"))
	assert.Equal(t, int32(0), launches.Load())
	assert.Equal(t, int32(0), closes.Load())
}
