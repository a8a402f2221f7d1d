package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level item a build file may contain.
type fileRoot struct {
	PackageFile  *string          `hcl:"package_file,optional"`
	Package      *packageBlock    `hcl:"package,block"`
	Banner       hcl.Expression   `hcl:"banner,optional"`
	BundleBanner hcl.Expression   `hcl:"bundle_banner,optional"`
	Paths        *pathsBlock      `hcl:"paths,block"`
	Files        []*filesBlock    `hcl:"files,block"`
	Commands     []*commandBlock  `hcl:"command,block"`
	Server       *serverBlock     `hcl:"server,block"`
	Tunnel       *tunnelBlock     `hcl:"tunnel,block"`
	LiveReload   *liveReloadBlock `hcl:"livereload,block"`
	Watches      []*watchBlock    `hcl:"watch,block"`
}

type packageBlock struct {
	Name        string  `hcl:"name"`
	Version     string  `hcl:"version"`
	Codename    *string `hcl:"codename,optional"`
	Description *string `hcl:"description,optional"`
	Homepage    *string `hcl:"homepage,optional"`
	License     *string `hcl:"license,optional"`
}

type pathsBlock struct {
	Dist    *string `hcl:"dist,optional"`
	DistJS  *string `hcl:"dist_js,optional"`
	DistCSS *string `hcl:"dist_css,optional"`
}

type filesBlock struct {
	Name     string   `hcl:"name,label"`
	Base     *string  `hcl:"base,optional"`
	Patterns []string `hcl:"patterns"`
}

type commandBlock struct {
	Name    string   `hcl:"name,label"`
	Program string   `hcl:"program"`
	Args    []string `hcl:"args,optional"`
}

type serverBlock struct {
	Port *int    `hcl:"port,optional"`
	Root *string `hcl:"root,optional"`
}

type tunnelBlock struct {
	Program   *string  `hcl:"program,optional"`
	Args      []string `hcl:"args,optional"`
	ReadyLine *string  `hcl:"ready_line,optional"`
	Timeout   *string  `hcl:"timeout,optional"`
}

type liveReloadBlock struct {
	URL       string  `hcl:"url"`
	Namespace *string `hcl:"namespace,optional"`
	Event     *string `hcl:"event,optional"`
}

type watchBlock struct {
	Pattern string   `hcl:"pattern,label"`
	Tasks   []string `hcl:"tasks"`
}
