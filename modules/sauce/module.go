// Package sauce manages the remote-testing tunnel as a resource task.
package sauce

import (
	"context"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers sauce-connect and cloudtest.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("sauce-connect", nil,
		dag.Async(func(ctx context.Context) error {
			_, err := r.Tunnels.Setup(ctx, r.Options.Tunnel)
			return err
		}),
		dag.WithRelease(func(ctx context.Context) error {
			return r.Tunnels.Teardown(ctx, r.Tunnels.Active())
		}),
		dag.WithDescription("Open the remote-testing tunnel for the tasks that need it"),
	)

	// cloudtest closes the tunnel itself as soon as the remote suite is done.
	r.RegisterTask("cloudtest", []string{"protractor-sauce"},
		dag.Sync(func(ctx context.Context) error {
			s := r.Tunnels.Active()
			if s == nil {
				ctxlog.FromContext(ctx).Debug("No tunnel to close.")
				return nil
			}
			return r.Tunnels.Teardown(ctx, s)
		}),
		dag.WithDescription("Run the end-to-end suite remotely and close the tunnel"),
	)
}
