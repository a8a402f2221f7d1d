// Package transform holds the content transformations plugged into
// pipelines: minification, debug stripping and CSS preprocessing.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/process"
)

const (
	mediaJS  = "application/javascript"
	mediaCSS = "text/css"
)

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mediaJS, js.Minify)
	m.AddFunc(mediaCSS, css.Minify)
	return m
}

// Uglify minifies JavaScript records.
func Uglify() pipeline.Stage {
	return pipeline.Transform("uglify", func(f pipeline.FileRecord) ([]byte, error) {
		return minifier.Bytes(mediaJS, f.Contents)
	})
}

// CSSMin minifies stylesheet records.
func CSSMin() pipeline.Stage {
	return pipeline.Transform("cssmin", func(f pipeline.FileRecord) ([]byte, error) {
		return minifier.Bytes(mediaCSS, f.Contents)
	})
}

var (
	consoleStmt  = regexp.MustCompile(`(?m)^[ \t]*console\.[A-Za-z]+\([^;\n]*\)[ \t]*;?[ \t]*(\r?\n|$)`)
	debuggerStmt = regexp.MustCompile(`(?m)^[ \t]*debugger;?[ \t]*(\r?\n|$)`)
)

// StripDebug removes console calls and debugger statements that make up a
// whole line. Calls spanning several lines, or sharing a line with other
// statements, are left alone.
func StripDebug() pipeline.Stage {
	return pipeline.Transform("strip-debug", func(f pipeline.FileRecord) ([]byte, error) {
		out := consoleStmt.ReplaceAll(f.Contents, nil)
		return debuggerStmt.ReplaceAll(out, nil), nil
	})
}

// Sass compiles each record by piping it through an external compiler that
// reads stdin and writes CSS to stdout. Record paths get a .css extension.
type Sass struct {
	Orchestrator *process.Orchestrator
	Program      string
	Args         []string
	// Dir is the compiler's working directory; imports resolve against it.
	Dir string
}

// Name implements pipeline.Stage.
func (s *Sass) Name() string { return "sass" }

// Apply implements pipeline.Stage.
func (s *Sass) Apply(ctx context.Context, files []pipeline.FileRecord) ([]pipeline.FileRecord, error) {
	out := make([]pipeline.FileRecord, 0, len(files))
	for _, f := range files {
		h, err := s.Orchestrator.Run(ctx, s.Program, s.Args, process.Capture,
			process.WithDir(s.Dir),
			process.WithStdin(bytes.NewReader(f.Contents)),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		cssPath := f.Path[:len(f.Path)-len(path.Ext(f.Path))] + ".css"
		out = append(out, f.WithPath(cssPath).WithContents(h.Stdout()))
	}
	return out, nil
}
