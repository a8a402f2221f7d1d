package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/registry"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestStaticServer(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>ionic</h1>"), 0o644))

	s := &StaticServer{Root: root}
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "second start must fail")

	code, body := get(t, "http://"+s.Addr()+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	code, body = get(t, "http://"+s.Addr()+"/index.html")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<h1>ionic</h1>", body)

	addr := s.Addr()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))
	_, err := http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}

func TestConnectServer_ReleasedAfterDependents(t *testing.T) {
	model := config.Default(t.TempDir())
	model.Server.Port = 0
	r := registry.New(dag.New(), model, pipeline.Variant{}, registry.Options{})
	m := &Module{}
	m.Register(r)

	var during int
	require.NoError(t, r.Graph.Register("protractor", []string{"connect-server"}, dag.Sync(func(context.Context) error {
		during, _ = get(t, "http://"+m.server.Addr()+"/health")
		return nil
	})))

	_, err := r.Graph.Run(context.Background(), "protractor")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, during)
	assert.Empty(t, m.server.Addr(), "server should be shut down once the run ends")
}
