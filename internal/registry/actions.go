package registry

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/fsutil"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/process"
)

// ReadFileSet loads the records of a declared file set.
func (r *Registry) ReadFileSet(name string) ([]pipeline.FileRecord, error) {
	fs, err := r.Model.FileSet(name)
	if err != nil {
		return nil, err
	}
	return pipeline.Read(r.Model.Root, fs.Base, fs.Patterns...)
}

// MatchFileSet returns the root-relative paths of a declared file set.
func (r *Registry) MatchFileSet(name string) ([]string, error) {
	fs, err := r.Model.FileSet(name)
	if err != nil {
		return nil, err
	}
	base := fs.Base
	if base == "" {
		base = "."
	}
	matches, err := fsutil.Glob(r.Model.Abs(base), fs.Patterns...)
	if err != nil {
		return nil, err
	}
	if base != "." {
		for i, m := range matches {
			matches[i] = base + "/" + m
		}
	}
	return matches, nil
}

// PipelineAction returns an action that builds chain for the registry's
// variant and executes it over the records input loads. The pipeline is
// built when the action runs so the build file can be swapped in tests.
func (r *Registry) PipelineAction(chain func() *pipeline.Chain, input func() ([]pipeline.FileRecord, error)) dag.Action {
	return dag.Sync(func(ctx context.Context) error {
		compiled, err := chain().Build(r.Variant)
		if err != nil {
			return err
		}
		files, err := input()
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		ctxlog.FromContext(ctx).Debug("Running pipeline.", "pipeline", compiled.Name, "stages", compiled.Stages(), "files", len(files))
		_, err = compiled.Execute(ctx, files)
		return err
	})
}

// CommandAction returns an action that runs a declared command in the
// project root with inherited stdio. extra, when set, supplies arguments
// appended at run time.
func (r *Registry) CommandAction(name string, extra func() ([]string, error)) dag.Action {
	return dag.Async(func(ctx context.Context) error {
		cmd, err := r.Model.Command(name)
		if err != nil {
			return err
		}
		args := append([]string(nil), cmd.Args...)
		if extra != nil {
			more, err := extra()
			if err != nil {
				return err
			}
			args = append(args, more...)
		}
		_, err = r.Processes.Run(ctx, cmd.Program, args, process.Inherit, process.WithDir(r.Model.Root))
		return err
	})
}
