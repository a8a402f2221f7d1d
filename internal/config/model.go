package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Loader reads build declarations from paths and returns the merged model.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified representation of a build declaration. All relative
// paths in it resolve against Root.
type Model struct {
	Root string

	Package      Package
	Banner       string
	BundleBanner string

	Paths      Paths
	Files      map[string]*FileSet
	Commands   map[string]*Command
	Server     Server
	Tunnel     Tunnel
	LiveReload *LiveReload
	Watches    []*WatchRule
}

// Package is the project metadata exposed to banner templates and written
// to version.json.
type Package struct {
	Name        string `cty:"name"`
	Version     string `cty:"version"`
	Codename    string `cty:"codename"`
	Description string `cty:"description"`
	Homepage    string `cty:"homepage"`
	License     string `cty:"license"`
}

// Paths are the output directories.
type Paths struct {
	Dist    string
	DistJS  string
	DistCSS string
}

// FileSet is a named list of glob patterns read relative to Base.
type FileSet struct {
	Name     string
	Base     string
	Patterns []string
}

// Command is an external program invocation.
type Command struct {
	Name    string
	Program string
	Args    []string
}

// Server configures the static file server.
type Server struct {
	Port int
	Root string
}

// Tunnel configures the remote-testing tunnel client.
type Tunnel struct {
	Program   string
	Args      []string
	ReadyLine string
	Timeout   time.Duration
}

// LiveReload configures the socket.io endpoint notified after watch runs.
type LiveReload struct {
	URL       string
	Namespace string
	Event     string
}

// WatchRule maps a glob pattern to the tasks a change re-runs.
type WatchRule struct {
	Pattern string
	Tasks   []string
}

// Default returns the built-in declaration rooted at root.
func Default(root string) *Model {
	return &Model{
		Root:         root,
		Banner:       "/*!\n * Copyright 2014 Drifty Co.\n * http://drifty.com/\n */\n",
		BundleBanner: "/*!\n * ionic.bundle.js is a concatenation of:\n * ionic.js, angular.js, angular-animate.js,\n * angular-ui-router.js, and ionic-angular.js\n */\n\n",
		Paths: Paths{
			Dist:    "dist",
			DistJS:  "dist/js",
			DistCSS: "dist/css",
		},
		Files: map[string]*FileSet{
			"ionic":         {Name: "ionic", Patterns: []string{"js/_license.js", "js/utils/**/*.js", "js/views/**/*.js", "js/controllers/**/*.js"}},
			"angular_ionic": {Name: "angular_ionic", Patterns: []string{"js/ext/angular/src/**/*.js"}},
			"vendor":        {Name: "vendor", Base: "config/lib", Patterns: []string{"js/**/*.js", "css/**/*.css", "fonts/**/*"}},
			"bundle":        {Name: "bundle", Patterns: []string{"dist/js/ionic.js", "config/lib/js/angular/angular.js", "config/lib/js/angular/angular-animate.js", "config/lib/js/angular-ui/angular-ui-router.js", "dist/js/ionic-angular.js"}},
			"scss":          {Name: "scss", Patterns: []string{"scss/ionic.scss"}},
			"lint":          {Name: "lint", Patterns: []string{"js/**/*.js", "test/**/*.js"}},
			"specs":         {Name: "specs", Patterns: []string{"test/**/*.js", "js/**/*.js"}},
		},
		Commands: map[string]*Command{
			"karma":            {Name: "karma", Program: "node", Args: []string{"./node_modules/karma/bin/karma", "start"}},
			"protractor":       {Name: "protractor", Program: "protractor", Args: []string{"config/protractor.conf.js"}},
			"protractor_sauce": {Name: "protractor_sauce", Program: "protractor", Args: []string{"config/protractor-sauce.conf.js"}},
			"jshint":           {Name: "jshint", Program: "jshint", Args: []string{"--config", ".jshintrc", "--reporter", "node_modules/jshint-stylish/stylish.js"}},
			"docs":             {Name: "docs", Program: "node", Args: []string{"docs/generate.js"}},
			"sass":             {Name: "sass", Program: "sass", Args: []string{"--stdin", "--load-path=scss"}},
		},
		Server: Server{Port: 8765, Root: "."},
		Tunnel: Tunnel{Program: "sc", ReadyLine: "Sauce Connect is up", Timeout: 2 * time.Minute},
		Watches: []*WatchRule{
			{Pattern: "js/**/*.js", Tasks: []string{"bundle", "docs"}},
			{Pattern: "docs/**/*", Tasks: []string{"docs"}},
			{Pattern: "scss/**/*.scss", Tasks: []string{"sass"}},
		},
	}
}

// Abs resolves p against Root unless it is already absolute.
func (m *Model) Abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}

// FileSet returns the named file set.
func (m *Model) FileSet(name string) (*FileSet, error) {
	fs, ok := m.Files[name]
	if !ok {
		return nil, fmt.Errorf("file set %q is not declared", name)
	}
	return fs, nil
}

// Command returns the named command.
func (m *Model) Command(name string) (*Command, error) {
	c, ok := m.Commands[name]
	if !ok || c.Program == "" {
		return nil, fmt.Errorf("command %q is not declared", name)
	}
	return c, nil
}
