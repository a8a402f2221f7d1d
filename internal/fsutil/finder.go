// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob expands patterns against root and returns the matching files as
// slash-separated paths relative to root.
//
// Patterns are applied in order and each pattern's matches are sorted, so the
// result follows the declared order. A pattern starting with "!" removes
// earlier matches. Files matched by several patterns are listed once, at
// their first position. Patterns that match nothing are not an error.
func Glob(root string, patterns ...string) ([]string, error) {
	fsys := os.DirFS(root)

	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if exclude, ok := strings.CutPrefix(pattern, "!"); ok {
			if !doublestar.ValidatePattern(exclude) {
				return nil, fmt.Errorf("invalid pattern %q", pattern)
			}
			kept := files[:0]
			for _, f := range files {
				if match, _ := doublestar.Match(exclude, f); match {
					delete(seen, f)
					continue
				}
				kept = append(kept, f)
			}
			files = kept
			continue
		}

		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// Match reports whether the slash-separated path matches any of patterns.
// Negated patterns are not supported here.
func Match(path string, patterns ...string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
