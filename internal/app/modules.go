package app

import (
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/modules/docs"
	"github.com/vk/buildgrid/modules/lint"
	"github.com/vk/buildgrid/modules/sauce"
	"github.com/vk/buildgrid/modules/scripts"
	"github.com/vk/buildgrid/modules/server"
	"github.com/vk/buildgrid/modules/styles"
	"github.com/vk/buildgrid/modules/testrunner"
	"github.com/vk/buildgrid/modules/watch"
)

// coreModules is the definitive list of all modules that are compiled into
// the buildgrid binary.
var coreModules = []registry.Module{
	&scripts.Module{},
	&styles.Module{},
	&lint.Module{},
	&docs.Module{},
	&server.Module{},
	&sauce.Module{},
	&testrunner.Module{},
	&watch.Module{},
	&Aliases{},
}

// Aliases registers the umbrella tasks. It depends on the scripts and styles
// modules.
type Aliases struct{}

func (*Aliases) Register(r *registry.Registry) {
	r.RegisterAlias("build", []string{"bundle", "sass"}, "Build scripts and styles")
	r.RegisterAlias(DefaultTask, []string{"build"}, "Alias for build")
}
