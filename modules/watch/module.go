// Package watch registers the watch task, which re-runs tasks on file
// changes until interrupted.
package watch

import (
	"context"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/notify"
	"github.com/vk/buildgrid/internal/registry"
	bgwatch "github.com/vk/buildgrid/internal/watch"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the watch task.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("watch", nil, dag.Async(func(ctx context.Context) error {
		trigger, closeFn, err := NewTrigger(ctx, r)
		if err != nil {
			return err
		}
		defer closeFn()
		return trigger.Start(ctx)
	}), dag.WithDescription("Rebuild on changes until interrupted"))
}

// NewTrigger builds a trigger over the registry's graph with the declared
// watch rules and, when configured, the live-reload notifier. The returned
// function releases the notifier.
func NewTrigger(ctx context.Context, r *registry.Registry) (*bgwatch.Trigger, func(), error) {
	var opts []bgwatch.Option
	closeFn := func() {}
	if lr := r.Model.LiveReload; lr != nil && lr.URL != "" {
		n := notify.NewLiveReload(*lr)
		opts = append(opts, bgwatch.WithNotifier(n))
		closeFn = func() {
			if err := n.Close(); err != nil {
				ctxlog.FromContext(ctx).Warn("Failed to close live-reload channel.", "error", err)
			}
		}
	}

	trigger := bgwatch.New(r.Graph, r.Model.Root, opts...)
	for _, rule := range r.Model.Watches {
		if err := trigger.Watch(rule.Pattern, rule.Tasks...); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return trigger, closeFn, nil
}
