// Package docs generates the API documentation with an external generator.
package docs

import (
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("docs", nil, r.CommandAction("docs", nil), dag.WithDescription("Generate the documentation site"))
}
