package docs

import (
	"context"
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

func TestDocs_RunsGeneratorInProjectRoot(t *testing.T) {
	root := t.TempDir()
	model := config.Default(root)
	model.Commands["docs"] = &config.Command{Name: "docs", Program: "sh", Args: []string{"-c", "mkdir -p dist/docs && touch dist/docs/index.html"}}

	r := registry.New(dag.New(), model, pipeline.Variant{}, registry.Options{})
	(&Module{}).Register(r)

	_, err := r.Graph.Run(context.Background(), "docs")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "dist", "docs", "index.html"))
}

func TestDocs_GeneratorFailure(t *testing.T) {
	model := config.Default(t.TempDir())
	model.Commands["docs"] = &config.Command{Name: "docs", Program: "sh", Args: []string{"-c", "exit 1"}}

	r := registry.New(dag.New(), model, pipeline.Variant{}, registry.Options{})
	(&Module{}).Register(r)

	_, err := r.Graph.Run(context.Background(), "docs")
	assert.ErrorContains(t, err, `task "docs" failed`)
	_, statErr := os.Stat(filepath.Join(model.Root, "dist"))
	assert.True(t, os.IsNotExist(statErr))
}
