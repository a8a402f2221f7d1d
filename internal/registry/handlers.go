package registry

import (
	"fmt"
	"log/slog"

	"github.com/vk/buildgrid/internal/dag"
)

// RegisterTask adds a task to the graph. Registering a name twice is a
// programming error in the modules and panics.
func (r *Registry) RegisterTask(name string, deps []string, action dag.Action, opts ...dag.TaskOption) {
	if err := r.Graph.Register(name, deps, action, opts...); err != nil {
		panic(fmt.Sprintf("task handler with name '%s' already registered: %v", name, err))
	}
	slog.Debug("Registering task.", "name", name, "deps", deps)
}

// RegisterAlias adds a task that only groups its dependencies.
func (r *Registry) RegisterAlias(name string, deps []string, description string) {
	r.RegisterTask(name, deps, nil, dag.WithDescription(description))
}
