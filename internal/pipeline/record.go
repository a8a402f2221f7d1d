package pipeline

import (
	"maps"
	"path"
	"strings"
)

// MetaBase is the metadata key holding the base directory a record was read
// relative to. Dest strips it when choosing the output location.
const MetaBase = "base"

// FileRecord is an in-memory file flowing through a pipeline. Records are
// values: stages return new records and never modify Contents or Meta of the
// records they receive.
type FileRecord struct {
	// Path is slash-separated and relative to the project root.
	Path     string
	Contents []byte
	Meta     map[string]string
}

// NewFile returns a record without metadata.
func NewFile(path string, contents []byte) FileRecord {
	return FileRecord{Path: path, Contents: contents}
}

// WithPath returns a copy of f with a new path.
func (f FileRecord) WithPath(p string) FileRecord {
	out := f.clone()
	out.Path = p
	return out
}

// WithContents returns a copy of f with new contents.
func (f FileRecord) WithContents(b []byte) FileRecord {
	out := f.clone()
	out.Contents = b
	return out
}

// WithMeta returns a copy of f with one metadata entry set.
func (f FileRecord) WithMeta(key, value string) FileRecord {
	out := f.clone()
	if out.Meta == nil {
		out.Meta = make(map[string]string, 1)
	}
	out.Meta[key] = value
	return out
}

// Base returns the base directory recorded when the file was read.
func (f FileRecord) Base() string {
	return f.Meta[MetaBase]
}

// Relative returns Path with the base directory stripped.
func (f FileRecord) Relative() string {
	base := f.Base()
	if base == "" || base == "." {
		return f.Path
	}
	rel, ok := strings.CutPrefix(f.Path, strings.TrimSuffix(base, "/")+"/")
	if !ok {
		return path.Base(f.Path)
	}
	return rel
}

func (f FileRecord) clone() FileRecord {
	return FileRecord{
		Path:     f.Path,
		Contents: f.Contents,
		Meta:     maps.Clone(f.Meta),
	}
}
