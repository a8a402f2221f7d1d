package registry

import (
	"io"
	"os"
	"time"

	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/process"
	"github.com/vk/buildgrid/internal/tunnel"
)

// Module is the interface that all task modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Options are the command-line values forwarded to individual tasks.
type Options struct {
	// Browsers and Reporters are passed verbatim to the unit test runner.
	Browsers  string
	Reporters string
	// Credentials for the remote-testing tunnel.
	Tunnel tunnel.Credentials
}

// Registry holds the task graph and the services modules build tasks from,
// for a single application instance.
type Registry struct {
	Graph     *dag.Graph
	Model     *config.Model
	Variant   pipeline.Variant
	Options   Options
	Processes *process.Orchestrator
	Tunnels   *tunnel.Manager

	// Out receives user-facing task output such as plan listings.
	Out io.Writer
	// Now is the clock used for build metadata.
	Now func() time.Time
}

// New creates a registry around graph and model with default services. The
// tunnel manager launches the client declared in the model.
func New(graph *dag.Graph, model *config.Model, variant pipeline.Variant, opts Options) *Registry {
	procs := process.New()
	r := &Registry{
		Graph:     graph,
		Model:     model,
		Variant:   variant,
		Options:   opts,
		Processes: procs,
		Out:       os.Stdout,
		Now:       time.Now,
	}
	r.Tunnels = tunnel.NewManager(&tunnel.ProcessLauncher{
		Orchestrator: procs,
		Program:      model.Tunnel.Program,
		Args:         model.Tunnel.Args,
		ReadyLine:    model.Tunnel.ReadyLine,
		Timeout:      model.Tunnel.Timeout,
		Dir:          model.Root,
	})
	return r
}
