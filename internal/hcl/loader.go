package hcl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/fsutil"
)

// defaultPackageFile is read when a build file names no package metadata.
const defaultPackageFile = "package.json"

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

type parsedFile struct {
	path string
	root fileRoot
}

// Load parses every .hcl file at paths and merges them, in order, over the
// built-in defaults. The directory of the first path becomes the model root.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, rootDir, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles), "root", rootDir)

	parser := hclparse.NewParser()
	parsed := make([]parsedFile, 0, len(hclFiles))
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		parsed = append(parsed, parsedFile{path: file, root: root})
	}

	model := config.Default(rootDir)
	pkg, err := l.loadPackage(ctx, model, parsed)
	if err != nil {
		return nil, err
	}
	model.Package = pkg

	evalCtx, err := evalContext(pkg)
	if err != nil {
		return nil, err
	}

	watchesDeclared := false
	for _, pf := range parsed {
		if err := l.apply(model, &pf.root, evalCtx, &watchesDeclared); err != nil {
			return nil, fmt.Errorf("%s: %w", pf.path, err)
		}
	}

	logger.Debug("HCL loading complete.",
		"package", pkg.Name,
		"files", len(model.Files),
		"commands", len(model.Commands),
		"watches", len(model.Watches),
	)
	return model, nil
}

// loadPackage resolves project metadata. The last file declaring it wins;
// without any declaration package.json next to the build file is used when
// present.
func (l *Loader) loadPackage(ctx context.Context, model *config.Model, parsed []parsedFile) (config.Package, error) {
	var pkg config.Package
	declared := false
	for _, pf := range parsed {
		switch {
		case pf.root.Package != nil:
			pkg = pf.root.Package.toModel()
			declared = true
		case pf.root.PackageFile != nil:
			p, err := readPackageJSON(model.Abs(*pf.root.PackageFile))
			if err != nil {
				return config.Package{}, fmt.Errorf("%s: %w", pf.path, err)
			}
			pkg = p
			declared = true
		}
	}
	if declared {
		return pkg, nil
	}

	p, err := readPackageJSON(model.Abs(defaultPackageFile))
	if errors.Is(err, fs.ErrNotExist) {
		ctxlog.FromContext(ctx).Debug("No package metadata found.")
		return config.Package{}, nil
	}
	return p, err
}

func (l *Loader) apply(m *config.Model, r *fileRoot, evalCtx *hcl.EvalContext, watchesDeclared *bool) error {
	if s, ok, err := evalString(r.Banner, evalCtx); err != nil {
		return fmt.Errorf("banner: %w", err)
	} else if ok {
		m.Banner = s
	}
	if s, ok, err := evalString(r.BundleBanner, evalCtx); err != nil {
		return fmt.Errorf("bundle_banner: %w", err)
	} else if ok {
		m.BundleBanner = s
	}

	if p := r.Paths; p != nil {
		setIf(&m.Paths.Dist, p.Dist)
		setIf(&m.Paths.DistJS, p.DistJS)
		setIf(&m.Paths.DistCSS, p.DistCSS)
	}

	for _, f := range r.Files {
		m.Files[f.Name] = &config.FileSet{Name: f.Name, Base: deref(f.Base), Patterns: f.Patterns}
	}
	for _, c := range r.Commands {
		m.Commands[c.Name] = &config.Command{Name: c.Name, Program: c.Program, Args: c.Args}
	}

	if s := r.Server; s != nil {
		setIf(&m.Server.Port, s.Port)
		setIf(&m.Server.Root, s.Root)
	}

	if t := r.Tunnel; t != nil {
		setIf(&m.Tunnel.Program, t.Program)
		setIf(&m.Tunnel.ReadyLine, t.ReadyLine)
		if t.Args != nil {
			m.Tunnel.Args = t.Args
		}
		if t.Timeout != nil {
			d, err := time.ParseDuration(*t.Timeout)
			if err != nil {
				return fmt.Errorf("tunnel timeout: %w", err)
			}
			m.Tunnel.Timeout = d
		}
	}

	if lr := r.LiveReload; lr != nil {
		m.LiveReload = &config.LiveReload{
			URL:       lr.URL,
			Namespace: "/",
			Event:     "reload",
		}
		setIf(&m.LiveReload.Namespace, lr.Namespace)
		setIf(&m.LiveReload.Event, lr.Event)
	}

	if len(r.Watches) > 0 {
		// Declared watch rules replace the defaults instead of adding to them.
		if !*watchesDeclared {
			m.Watches = nil
			*watchesDeclared = true
		}
		for _, w := range r.Watches {
			m.Watches = append(m.Watches, &config.WatchRule{Pattern: w.Pattern, Tasks: w.Tasks})
		}
	}
	return nil
}

// findAllHCLFiles expands paths into .hcl files. Directories contribute
// their top-level .hcl files in lexical order.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, string, error) {
	var allFiles []string
	rootDir := ""
	seen := make(map[string]struct{})

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, "", err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, "", fmt.Errorf("error accessing path %s: %w", p, err)
		}

		var found []string
		if info.IsDir() {
			if rootDir == "" {
				rootDir = abs
			}
			matches, err := fsutil.Glob(abs, "*.hcl")
			if err != nil {
				return nil, "", err
			}
			for _, m := range matches {
				found = append(found, filepath.Join(abs, filepath.FromSlash(m)))
			}
		} else {
			if rootDir == "" {
				rootDir = filepath.Dir(abs)
			}
			found = []string{abs}
		}

		for _, f := range found {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			allFiles = append(allFiles, f)
		}
	}
	return allFiles, rootDir, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
