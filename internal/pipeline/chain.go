package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"github.com/vk/buildgrid/internal/ctxlog"
)

// Variant selects which conditional stages a pipeline includes.
type Variant struct {
	Release bool
}

// String returns "release" or "debug".
func (v Variant) String() string {
	if v.Release {
		return "release"
	}
	return "debug"
}

// Condition decides whether a stage or sink is part of a variant.
type Condition func(Variant) bool

// ReleaseOnly includes a stage only in release builds.
func ReleaseOnly(v Variant) bool { return v.Release }

// DebugOnly includes a stage only in debug builds.
func DebugOnly(v Variant) bool { return !v.Release }

// Stage transforms a set of file records. Implementations must not modify
// the records they receive; branching relies on it.
type Stage interface {
	Name() string
	Apply(ctx context.Context, files []FileRecord) ([]FileRecord, error)
}

// StageFunc adapts a function into a Stage.
func StageFunc(name string, fn func(ctx context.Context, files []FileRecord) ([]FileRecord, error)) Stage {
	return &funcStage{name: name, fn: fn}
}

type funcStage struct {
	name string
	fn   func(ctx context.Context, files []FileRecord) ([]FileRecord, error)
}

func (s *funcStage) Name() string { return s.name }

func (s *funcStage) Apply(ctx context.Context, files []FileRecord) ([]FileRecord, error) {
	return s.fn(ctx, files)
}

type step struct {
	stage Stage
	conds []Condition
}

// Chain is a pipeline declaration: a linear run of stages optionally ending
// in a branch point. A Chain is not executable until built for a Variant.
type Chain struct {
	name     string
	when     []Condition
	steps    []step
	branches []*Chain
}

// New starts a pipeline declaration.
func New(name string) *Chain {
	return &Chain{name: name}
}

// Sink starts a continuation chain to be attached with Branch.
func Sink(name string) *Chain {
	return &Chain{name: name}
}

// Then appends a stage. The stage is kept only if every condition holds for
// the variant passed to Build.
func (c *Chain) Then(stage Stage, conds ...Condition) *Chain {
	c.steps = append(c.steps, step{stage: stage, conds: conds})
	return c
}

// When makes the whole chain conditional. Used on sinks that only exist in
// one variant.
func (c *Chain) When(conds ...Condition) *Chain {
	c.when = append(c.when, conds...)
	return c
}

// Branch ends the chain in a branch point feeding each sink.
func (c *Chain) Branch(sinks ...*Chain) *Chain {
	c.branches = append(c.branches, sinks...)
	return c
}

// Name returns the declared name.
func (c *Chain) Name() string {
	return c.name
}

func included(conds []Condition, v Variant) bool {
	for _, cond := range conds {
		if cond != nil && !cond(v) {
			return false
		}
	}
	return true
}

// Build compiles the declaration for variant. Stages and sinks whose
// conditions fail are dropped here, before any execution.
func (c *Chain) Build(variant Variant) (*Compiled, error) {
	var problems []string
	names := make(map[string]bool)

	var compile func(ch *Chain) *node
	compile = func(ch *Chain) *node {
		n := &node{name: ch.name}
		for _, s := range ch.steps {
			if s.stage == nil {
				problems = append(problems, fmt.Sprintf("%q has a nil stage", ch.name))
				continue
			}
			if included(s.conds, variant) {
				n.stages = append(n.stages, s.stage)
			}
		}
		for _, b := range ch.branches {
			if b == nil || !included(b.when, variant) {
				continue
			}
			n.branches = append(n.branches, compile(b))
		}
		if len(ch.branches) == 0 {
			if names[ch.name] {
				problems = append(problems, fmt.Sprintf("sink name %q is used twice", ch.name))
			}
			names[ch.name] = true
		}
		return n
	}

	root := compile(c)
	if len(problems) > 0 {
		return nil, &BuildError{Pipeline: c.name, Problems: problems}
	}
	return &Compiled{Name: c.name, Variant: variant, root: root}, nil
}

type node struct {
	name     string
	stages   []Stage
	branches []*node
}

// Compiled is an executable pipeline for one variant.
type Compiled struct {
	Name    string
	Variant Variant
	root    *node

	// MaxParallel bounds concurrently executing branches; 0 means one
	// goroutine per branch.
	MaxParallel int
}

// SinkResult is the output of one sink. Err is set when a stage aborted the
// sink; Files is then nil.
type SinkResult struct {
	Name  string
	Files []FileRecord
	Err   error
}

// Stages returns the names of the compiled stages, depth first, prefixed with
// their chain name. It is meant for plan output and tests.
func (p *Compiled) Stages() []string {
	var out []string
	var walk func(n *node)
	walk = func(n *node) {
		for _, s := range n.stages {
			out = append(out, n.name+"/"+s.Name())
		}
		for _, b := range n.branches {
			walk(b)
		}
	}
	walk(p.root)
	return out
}

// Execute runs the pipeline over input and returns one result per sink in
// declaration order. A failing stage only aborts the sinks downstream of it;
// the returned error joins all sink errors.
func (p *Compiled) Execute(ctx context.Context, input []FileRecord) ([]SinkResult, error) {
	ctx, logger := ctxlog.WithAttrs(ctx, "pipeline", p.Name, "variant", p.Variant.String())
	logger.Debug("Executing pipeline.", "input_files", len(input))

	results := p.run(ctx, p.root, p.root.name, snapshot(input))

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

func (p *Compiled) run(ctx context.Context, n *node, sink string, files []FileRecord) []SinkResult {
	logger := ctxlog.FromContext(ctx)

	for _, stage := range n.stages {
		out, err := stage.Apply(ctx, files)
		if err == nil {
			err = checkCollisions(out)
		}
		if err != nil {
			stageErr := &StageError{Sink: sink, Stage: stage.Name(), Err: err}
			logger.Error("Pipeline stage failed.", "sink", sink, "stage", stage.Name(), "error", err)
			return failAll(n, stageErr)
		}
		logger.Debug("Stage applied.", "sink", sink, "stage", stage.Name(), "files", len(out))
		files = out
	}

	if len(n.branches) == 0 {
		return []SinkResult{{Name: n.name, Files: files}}
	}

	// Each branch gets its own slice; records themselves are shared and
	// immutable.
	perBranch := make([][]SinkResult, len(n.branches))
	workers := pool.New()
	if p.MaxParallel > 0 {
		workers = workers.WithMaxGoroutines(p.MaxParallel)
	}
	for i, b := range n.branches {
		workers.Go(func() {
			perBranch[i] = p.run(ctx, b, b.name, snapshot(files))
		})
	}
	workers.Wait()

	var results []SinkResult
	for _, r := range perBranch {
		results = append(results, r...)
	}
	return results
}

// failAll reports err for every sink at or below n.
func failAll(n *node, err error) []SinkResult {
	if len(n.branches) == 0 {
		return []SinkResult{{Name: n.name, Err: err}}
	}
	var out []SinkResult
	for _, b := range n.branches {
		out = append(out, failAll(b, err)...)
	}
	return out
}

func checkCollisions(files []FileRecord) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Path] {
			return &PathCollisionError{Path: f.Path}
		}
		seen[f.Path] = true
	}
	return nil
}

func snapshot(files []FileRecord) []FileRecord {
	return append([]FileRecord(nil), files...)
}
