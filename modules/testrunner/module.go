// Package testrunner runs the unit suite through karma and the end-to-end
// suites through protractor, locally or over the remote tunnel.
package testrunner

import (
	"context"
	"strings"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the test tasks.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("karma", nil,
		r.CommandAction("karma", func() ([]string, error) { return KarmaArgs(r.Options, true), nil }),
		dag.WithDescription("Run the unit tests once"),
	)
	r.RegisterTask("karma-watch", nil,
		r.CommandAction("karma", func() ([]string, error) { return KarmaArgs(r.Options, false), nil }),
		dag.WithDescription("Run the unit tests on every change"),
	)
	r.RegisterTask("protractor", []string{"connect-server"},
		r.CommandAction("protractor", nil),
		dag.WithDescription("Run the end-to-end tests against the local server"),
	)
	r.RegisterTask("protractor-sauce", []string{"sauce-connect", "connect-server"},
		r.CommandAction("protractor_sauce", nil),
		dag.WithDescription("Run the end-to-end tests through the remote tunnel"),
	)
	r.RegisterTask("e2e-local", []string{"connect-server"}, hold("e2e-local"),
		dag.WithDescription("Serve the project for manual end-to-end testing until interrupted"))
	r.RegisterTask("e2e-sauce", []string{"sauce-connect", "connect-server"}, hold("e2e-sauce"),
		dag.WithDescription("Hold the tunnel and the server open until interrupted"))
}

// hold keeps its dependencies acquired until the run's context ends.
func hold(name string) dag.Action {
	return dag.Async(func(ctx context.Context) error {
		ctxlog.FromContext(ctx).Info("⏸️ Holding resources open, interrupt to stop.", "task", name)
		<-ctx.Done()
		return nil
	})
}

// KarmaArgs returns the arguments appended to the karma command: the config
// file, single-run mode and the forwarded browser and reporter lists.
func KarmaArgs(opts registry.Options, singleRun bool) []string {
	args := []string{"config/karma.conf.js"}
	if singleRun {
		args = append(args, "--single-run=true")
	}
	if b := strings.TrimSpace(opts.Browsers); b != "" {
		args = append(args, "--browsers="+b)
	}
	if rep := strings.TrimSpace(opts.Reporters); rep != "" {
		args = append(args, "--reporters="+rep)
	}
	return args
}
