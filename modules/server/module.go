// Package server provides the connect-server resource: a static file server
// over the project root that lives for as long as the tasks depending on it.
package server

import (
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	server *StaticServer
}

// Register registers the connect-server resource task.
func (m *Module) Register(r *registry.Registry) {
	m.server = &StaticServer{Root: r.Model.Abs(r.Model.Server.Root), Port: r.Model.Server.Port}
	r.RegisterTask("connect-server", nil,
		dag.Sync(m.server.Start),
		dag.WithRelease(m.server.Shutdown),
		dag.WithDescription("Serve the project over HTTP while dependents run"),
	)
}
