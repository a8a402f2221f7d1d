package lint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/guard"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/process"
	"github.com/vk/buildgrid/internal/registry"
)

func newProject(t *testing.T, files map[string]string) (*registry.Registry, string) {
	t.Helper()
	root := t.TempDir()
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	model := config.Default(root)
	model.Watches = nil
	r := registry.New(dag.New(), model, pipeline.Variant{}, registry.Options{})
	(&Module{}).Register(r)
	return r, root
}

func TestDdescribeIit(t *testing.T) {
	ctx := context.Background()

	t.Run("clean sources pass", func(t *testing.T) {
		r, _ := newProject(t, map[string]string{
			"test/list.spec.js": "describe('list', function() {\n  it('works', function() {});\n  myddescribeHelper();\n});\n",
			"js/list.js":        "var waiit = function() {};\n",
		})
		_, err := r.Graph.Run(ctx, "ddescribe-iit")
		assert.NoError(t, err)
	})

	t.Run("focused spec fails with file and line", func(t *testing.T) {
		r, _ := newProject(t, map[string]string{
			"test/list.spec.js": "describe('list', function() {\n\n  iit('works', function() {});\n});\n",
		})
		_, err := r.Graph.Run(ctx, "ddescribe-iit")
		require.Error(t, err)

		var patternErr *guard.DisallowedPatternError
		require.True(t, errors.As(err, &patternErr))
		assert.Equal(t, "test/list.spec.js", patternErr.File)
		assert.Equal(t, "iit", patternErr.Pattern)
		assert.Equal(t, 3, patternErr.Line)
	})
}

func TestJshint(t *testing.T) {
	r, root := newProject(t, map[string]string{
		"js/a.js":      "var a;\n",
		"test/a.js":    "var t;\n",
		"docs/skip.js": "var d;\n",
	})
	// The stand-in linter records its arguments and fails on request.
	out := filepath.Join(root, "args.txt")
	r.Model.Commands["jshint"] = &config.Command{Name: "jshint", Program: "sh", Args: []string{"-c", `echo "$@" > args.txt; exit ${LINT_EXIT:-0}`, "jshint"}}

	_, err := r.Graph.Run(context.Background(), "jshint")
	require.NoError(t, err)
	args, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "js/a.js test/a.js\n", string(args))

	t.Setenv("LINT_EXIT", "2")
	_, err = r.Graph.Run(context.Background(), "jshint")
	var failure *process.ProcessFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 2, failure.ExitCode)
}
