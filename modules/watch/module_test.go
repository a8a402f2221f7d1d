package watch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/registry"
	bgwatch "github.com/vk/buildgrid/internal/watch"
)

func TestNewTrigger_UsesDeclaredRules(t *testing.T) {
	ctx := context.Background()
	model := config.Default(t.TempDir())
	r := registry.New(dag.New(), model, pipeline.Variant{}, registry.Options{})

	var bundles, docs, sass atomic.Int32
	count := func(c *atomic.Int32) dag.Action {
		return dag.Sync(func(context.Context) error { c.Add(1); return nil })
	}
	r.RegisterTask("bundle", nil, count(&bundles))
	r.RegisterTask("docs", nil, count(&docs))
	r.RegisterTask("sass", nil, count(&sass))
	(&Module{}).Register(r)

	trigger, closeFn, err := NewTrigger(ctx, r)
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, []bgwatch.Rule{
		{Pattern: "js/**/*.js", Tasks: []string{"bundle", "docs"}},
		{Pattern: "docs/**/*", Tasks: []string{"docs"}},
		{Pattern: "scss/**/*.scss", Tasks: []string{"sass"}},
	}, trigger.Rules())

	assert.Equal(t, 1, trigger.Dispatch(ctx, "js/views/list.js"))
	assert.Equal(t, 1, trigger.Dispatch(ctx, "scss/_bar.scss"))
	trigger.Wait()
	assert.Equal(t, int32(1), bundles.Load())
	assert.Equal(t, int32(1), docs.Load())
	assert.Equal(t, int32(1), sass.Load())
}

func TestNewTrigger_InvalidRule(t *testing.T) {
	model := config.Default(t.TempDir())
	model.Watches = []*config.WatchRule{{Pattern: "js/[", Tasks: []string{"bundle"}}}
	r := registry.New(dag.New(), model, pipeline.Variant{}, registry.Options{})

	_, _, err := NewTrigger(context.Background(), r)
	assert.ErrorContains(t, err, "invalid watch pattern")
}
