// Package lint checks sources: jshint for style and a guard against
// focused or disabled specs.
package lint

import (
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/guard"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the lint tasks.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("jshint", nil,
		r.CommandAction("jshint", func() ([]string, error) {
			return r.MatchFileSet("lint")
		}),
		dag.WithDescription("Run jshint over the library and its tests"),
	)

	specGuard, err := guard.New(guard.FocusedSpecs...)
	if err != nil {
		panic(err)
	}
	r.RegisterTask("ddescribe-iit", nil,
		r.PipelineAction(func() *pipeline.Chain {
			return pipeline.New("ddescribe-iit").Then(specGuard.Stage())
		}, func() ([]pipeline.FileRecord, error) {
			return r.ReadFileSet("specs")
		}),
		dag.WithDescription("Fail on focused or disabled specs (ddescribe, iit, xit, xdescribe)"),
	)
}
