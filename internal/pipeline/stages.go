package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/fsutil"
)

// Concat joins all records, in the order received, into a single record
// named name. An empty input produces no output.
func Concat(name string) Stage {
	return StageFunc("concat("+name+")", func(_ context.Context, files []FileRecord) ([]FileRecord, error) {
		if len(files) == 0 {
			return nil, nil
		}
		var buf bytes.Buffer
		for _, f := range files {
			buf.Write(f.Contents)
		}
		return []FileRecord{NewFile(name, buf.Bytes())}, nil
	})
}

// Header prepends text to every record.
func Header(text string) Stage {
	return Transform("header", func(f FileRecord) ([]byte, error) {
		out := make([]byte, 0, len(text)+len(f.Contents))
		out = append(out, text...)
		return append(out, f.Contents...), nil
	})
}

// Rename replaces the extension of every record's path with ext, e.g.
// Rename(".min.js") turns "dist/ionic.js" into "dist/ionic.min.js".
func Rename(ext string) Stage {
	return StageFunc("rename("+ext+")", func(_ context.Context, files []FileRecord) ([]FileRecord, error) {
		out := make([]FileRecord, len(files))
		for i, f := range files {
			trimmed := f.Path[:len(f.Path)-len(path.Ext(f.Path))]
			out[i] = f.WithPath(trimmed + ext)
		}
		return out, nil
	})
}

// Transform applies fn to the contents of every record.
func Transform(name string, fn func(FileRecord) ([]byte, error)) Stage {
	return StageFunc(name, func(_ context.Context, files []FileRecord) ([]FileRecord, error) {
		out := make([]FileRecord, len(files))
		for i, f := range files {
			b, err := fn(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Path, err)
			}
			out[i] = f.WithContents(b)
		}
		return out, nil
	})
}

// Filter keeps the records keep accepts, in order.
func Filter(name string, keep func(FileRecord) bool) Stage {
	return StageFunc(name, func(_ context.Context, files []FileRecord) ([]FileRecord, error) {
		var out []FileRecord
		for _, f := range files {
			if keep(f) {
				out = append(out, f)
			}
		}
		return out, nil
	})
}

// Dest writes every record under dir, keeping its path relative to the base
// it was read from, and passes the records through. Writes are complete when
// the stage returns.
func Dest(dir string) Stage {
	return StageFunc("dest("+dir+")", func(ctx context.Context, files []FileRecord) ([]FileRecord, error) {
		logger := ctxlog.FromContext(ctx)
		for _, f := range files {
			target := filepath.Join(dir, filepath.FromSlash(f.Relative()))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(target, f.Contents, 0o644); err != nil {
				return nil, err
			}
			logger.Debug("Wrote file.", "path", target, "bytes", len(f.Contents))
		}
		return files, nil
	})
}

// Read loads the files under root/base matching patterns. Record paths are
// relative to root and carry base as metadata, so Dest drops the base
// directory the way a glob base does.
func Read(root, base string, patterns ...string) ([]FileRecord, error) {
	if base == "" {
		base = "."
	}
	matches, err := fsutil.Glob(filepath.Join(root, filepath.FromSlash(base)), patterns...)
	if err != nil {
		return nil, err
	}

	files := make([]FileRecord, 0, len(matches))
	for _, m := range matches {
		contents, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(base), filepath.FromSlash(m)))
		if err != nil {
			return nil, err
		}
		files = append(files, NewFile(path.Join(base, m), contents).WithMeta(MetaBase, base))
	}
	return files, nil
}
