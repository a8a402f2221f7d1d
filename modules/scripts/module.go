// Package scripts builds the JavaScript distribution: the concatenated
// library files, the vendor copy, the version stamp and the bundle.
package scripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/pipeline"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/transform"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the script tasks.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("scripts", nil,
		r.PipelineAction(func() *pipeline.Chain { return ScriptsChain(r) }, func() ([]pipeline.FileRecord, error) {
			return r.ReadFileSet("ionic")
		}),
		dag.WithDescription("Concatenate the core library into ionic.js and ionic.min.js"),
	)
	r.RegisterTask("scripts-ng", nil,
		r.PipelineAction(func() *pipeline.Chain { return AngularChain(r) }, func() ([]pipeline.FileRecord, error) {
			return r.ReadFileSet("angular_ionic")
		}),
		dag.WithDescription("Concatenate the Angular extension into ionic-angular.js and ionic-angular.min.js"),
	)
	r.RegisterTask("vendor", nil,
		r.PipelineAction(func() *pipeline.Chain {
			return pipeline.New("vendor").Then(pipeline.Dest(r.Model.Abs(r.Model.Paths.Dist)))
		}, func() ([]pipeline.FileRecord, error) {
			return r.ReadFileSet("vendor")
		}),
		dag.WithDescription("Copy vendor libraries into the distribution"),
	)
	r.RegisterTask("version", nil, dag.Sync(func(ctx context.Context) error {
		return WriteVersion(ctx, r)
	}), dag.WithDescription("Write dist/version.json"))
	r.RegisterTask("bundle", []string{"scripts", "scripts-ng", "vendor", "version"},
		r.PipelineAction(func() *pipeline.Chain { return BundleChain(r) }, func() ([]pipeline.FileRecord, error) {
			return bundleInput(r)
		}),
		dag.WithDescription("Bundle ionic with Angular and its vendor libraries"),
	)
}

// ScriptsChain concatenates the core files, strips debug statements in the
// release variant and writes a plain and a banner-prefixed min artifact.
func ScriptsChain(r *registry.Registry) *pipeline.Chain {
	distJS := r.Model.Abs(r.Model.Paths.DistJS)
	return pipeline.New("scripts").
		Then(pipeline.Concat("ionic.js")).
		Then(transform.StripDebug(), pipeline.ReleaseOnly).
		Branch(
			pipeline.Sink("ionic.js").
				Then(pipeline.Dest(distJS)),
			pipeline.Sink("ionic.min.js").
				Then(transform.Uglify(), pipeline.ReleaseOnly).
				Then(pipeline.Header(r.Model.Banner)).
				Then(pipeline.Rename(".min.js")).
				Then(pipeline.Dest(distJS)),
		)
}

// AngularChain is the Angular extension's counterpart of ScriptsChain. Here
// minification happens before the branch and debug stripping after it.
func AngularChain(r *registry.Registry) *pipeline.Chain {
	distJS := r.Model.Abs(r.Model.Paths.DistJS)
	return pipeline.New("scripts-ng").
		Then(pipeline.Header(r.Model.Banner)).
		Then(pipeline.Concat("ionic-angular.js")).
		Then(transform.Uglify(), pipeline.ReleaseOnly).
		Branch(
			pipeline.Sink("ionic-angular.js").
				Then(pipeline.Dest(distJS)),
			pipeline.Sink("ionic-angular.min.js").
				Then(transform.StripDebug(), pipeline.ReleaseOnly).
				Then(pipeline.Header(r.Model.Banner)).
				Then(pipeline.Rename(".min.js")).
				Then(pipeline.Dest(distJS)),
		)
}

// BundleChain concatenates the bundle inputs with the bundle banner on each
// file. The min sink only exists in the release variant and only takes the
// .min.js inputs.
func BundleChain(r *registry.Registry) *pipeline.Chain {
	distJS := r.Model.Abs(r.Model.Paths.DistJS)
	return pipeline.New("bundle").
		Branch(
			pipeline.Sink("ionic.bundle.js").
				Then(pipeline.Filter("plain-inputs", func(f pipeline.FileRecord) bool { return !isMin(f.Path) })).
				Then(pipeline.Header(r.Model.BundleBanner)).
				Then(pipeline.Concat("ionic.bundle.js")).
				Then(pipeline.Dest(distJS)),
			pipeline.Sink("ionic.bundle.min.js").
				When(pipeline.ReleaseOnly).
				Then(pipeline.Filter("min-inputs", func(f pipeline.FileRecord) bool { return isMin(f.Path) })).
				Then(pipeline.Header(r.Model.BundleBanner)).
				Then(pipeline.Concat("ionic.bundle.min.js")).
				Then(pipeline.Dest(distJS)),
		)
}

func isMin(p string) bool {
	return strings.HasSuffix(p, ".min.js")
}

// bundleInput reads the bundle file set and, for a release build, the
// minified counterpart of every file in it.
func bundleInput(r *registry.Registry) ([]pipeline.FileRecord, error) {
	fs, err := r.Model.FileSet("bundle")
	if err != nil {
		return nil, err
	}
	files, err := pipeline.Read(r.Model.Root, fs.Base, fs.Patterns...)
	if err != nil {
		return nil, err
	}
	if !r.Variant.Release {
		return files, nil
	}

	minPatterns := make([]string, len(fs.Patterns))
	for i, p := range fs.Patterns {
		minPatterns[i] = strings.TrimSuffix(p, ".js") + ".min.js"
	}
	minFiles, err := pipeline.Read(r.Model.Root, fs.Base, minPatterns...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.Path] = true
	}
	for _, f := range minFiles {
		if !seen[f.Path] {
			files = append(files, f)
		}
	}
	return files, nil
}

// WriteVersion writes the version stamp into the distribution directory.
func WriteVersion(ctx context.Context, r *registry.Registry) error {
	doc, err := VersionJSON(r.Model.Package, r.Now())
	if err != nil {
		return err
	}
	target := filepath.Join(r.Model.Abs(r.Model.Paths.Dist), "version.json")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(target, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}
	ctxlog.FromContext(ctx).Info("✅ Version stamp written.", "path", target, "version", r.Model.Package.Version)
	return nil
}
