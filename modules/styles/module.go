// Package styles compiles the stylesheets.
package styles

import (
	"context"

	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/transform"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sass task.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("sass", nil,
		r.PipelineAction(func() *pipeline.Chain { return SassChain(r) }, func() ([]pipeline.FileRecord, error) {
			return r.ReadFileSet("scss")
		}),
		dag.WithDescription("Compile scss/ionic.scss into ionic.css and ionic.min.css"),
	)
}

// SassChain compiles the entry stylesheet with the configured sass command
// and writes a plain and a banner-prefixed min artifact. The min artifact is
// only minified in the release variant.
func SassChain(r *registry.Registry) *pipeline.Chain {
	distCSS := r.Model.Abs(r.Model.Paths.DistCSS)
	var compiler pipeline.Stage
	if cmd, err := r.Model.Command("sass"); err != nil {
		compiler = pipeline.StageFunc("sass", func(context.Context, []pipeline.FileRecord) ([]pipeline.FileRecord, error) {
			return nil, err
		})
	} else {
		compiler = &transform.Sass{Orchestrator: r.Processes, Program: cmd.Program, Args: cmd.Args, Dir: r.Model.Root}
	}

	return pipeline.New("sass").
		Then(pipeline.Header(r.Model.Banner)).
		Then(compiler).
		Then(pipeline.Concat("ionic.css")).
		Branch(
			pipeline.Sink("ionic.css").
				Then(pipeline.Dest(distCSS)),
			pipeline.Sink("ionic.min.css").
				Then(transform.CSSMin(), pipeline.ReleaseOnly).
				Then(pipeline.Header(r.Model.Banner)).
				Then(pipeline.Rename(".min.css")).
				Then(pipeline.Dest(distCSS)),
		)
}
