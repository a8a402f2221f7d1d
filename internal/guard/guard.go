// Package guard scans sources for calls that must not be committed, such as
// focused or disabled test specs.
package guard

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/buildgrid/internal/pipeline"
)

// FocusedSpecs are the calls that focus or disable a spec.
var FocusedSpecs = []string{"ddescribe", "iit", "xit", "xdescribe"}

// DisallowedPatternError names the first disallowed call found.
type DisallowedPatternError struct {
	File    string
	Pattern string
	Line    int
}

func (e *DisallowedPatternError) Error() string {
	return fmt.Sprintf("%s contains %s on line %d", e.File, e.Pattern, e.Line)
}

type rule struct {
	word string
	re   *regexp.Regexp
}

// Guard matches whole identifiers followed by a call, so "iit(" is caught
// but "waiit(" or "myiitHelper(" are not.
type Guard struct {
	rules []rule
}

// New compiles a guard for words. Words are checked in the given order.
func New(words ...string) (*Guard, error) {
	g := &Guard{}
	for _, w := range words {
		if w == "" {
			return nil, fmt.Errorf("empty pattern")
		}
		re, err := regexp.Compile(`(?m)(^|[^A-Za-z0-9$_])(` + regexp.QuoteMeta(w) + `)[^A-Za-z0-9$_]*\(`)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", w, err)
		}
		g.rules = append(g.rules, rule{word: w, re: re})
	}
	return g, nil
}

// Check returns a *DisallowedPatternError for the first word, in declaration
// order, that appears in contents.
func (g *Guard) Check(file string, contents []byte) error {
	for _, r := range g.rules {
		loc := r.re.FindSubmatchIndex(contents)
		if loc == nil {
			continue
		}
		// loc[4] is the start of the word itself, past any boundary byte.
		line := strings.Count(string(contents[:loc[4]]), "\n") + 1
		return &DisallowedPatternError{File: file, Pattern: r.word, Line: line}
	}
	return nil
}

// Stage wraps the guard as a pass-through pipeline stage that fails on the
// first offending file.
func (g *Guard) Stage() pipeline.Stage {
	return pipeline.StageFunc("guard", func(_ context.Context, files []pipeline.FileRecord) ([]pipeline.FileRecord, error) {
		for _, f := range files {
			if err := g.Check(f.Path, f.Contents); err != nil {
				return nil, err
			}
		}
		return files, nil
	})
}
