// Package watch re-runs tasks when files matching declared patterns change.
//
// Every matching rule issues its own run, and a new run never waits for an
// earlier one, so runs triggered in quick succession may overlap.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/notify"
)

// Runner executes a set of tasks. *dag.Graph satisfies it.
type Runner interface {
	Run(ctx context.Context, names ...string) (*dag.Result, error)
}

// Rule maps a slash-separated glob, relative to the trigger root, to tasks.
type Rule struct {
	Pattern string
	Tasks   []string
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithNotifier sets a notifier told about every successful run.
func WithNotifier(n notify.Notifier) Option {
	return func(t *Trigger) { t.notifier = n }
}

// Trigger dispatches runs for file changes below root.
type Trigger struct {
	runner   Runner
	root     string
	notifier notify.Notifier

	mu    sync.RWMutex
	rules []Rule

	runs conc.WaitGroup
}

// New creates a trigger for paths below root.
func New(runner Runner, root string, opts ...Option) *Trigger {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	t := &Trigger{runner: runner, root: root}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Watch registers a rule.
func (t *Trigger) Watch(pattern string, tasks ...string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid watch pattern %q", pattern)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("watch pattern %q names no tasks", pattern)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules = append(t.rules, Rule{Pattern: pattern, Tasks: append([]string(nil), tasks...)})
	return nil
}

// Rules returns a copy of the registered rules.
func (t *Trigger) Rules() []Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Rule(nil), t.rules...)
}

// Dispatch issues one run per rule matching path and returns how many were
// issued. path may be absolute or relative to the root.
func (t *Trigger) Dispatch(ctx context.Context, path string) int {
	rel, ok := t.relative(path)
	if !ok {
		return 0
	}

	issued := 0
	for _, rule := range t.Rules() {
		if !doublestar.MatchUnvalidated(rule.Pattern, rel) {
			continue
		}
		issued++
		t.runs.Go(func() { t.run(ctx, rule, rel) })
	}
	return issued
}

// Wait blocks until every dispatched run has returned.
func (t *Trigger) Wait() {
	t.runs.Wait()
}

func (t *Trigger) run(ctx context.Context, rule Rule, changed string) {
	ctx, logger := ctxlog.WithAttrs(ctx, "watch", rule.Pattern)
	logger.Info("👀 Change detected, re-running tasks.", "path", changed, "tasks", rule.Tasks)

	result, err := t.runner.Run(ctx, rule.Tasks...)
	if err != nil {
		logger.Error("🔥 Watch run failed.", "error", err)
		return
	}
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, result.Tasks(dag.Done)); err != nil {
		logger.Warn("Failed to send change notification.", "error", err)
	}
}

func (t *Trigger) relative(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), true
	}
	rel, err := filepath.Rel(t.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Start watches the static base directory of every rule and dispatches runs
// until ctx is done. It then waits for in-flight runs before returning.
func (t *Trigger) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer t.runs.Wait()
	defer fsw.Close()

	watched := make(map[string]bool)
	for _, rule := range t.Rules() {
		base, _ := doublestar.SplitPattern(rule.Pattern)
		dir := filepath.Join(t.root, filepath.FromSlash(base))
		if err := addRecursive(fsw, dir, watched); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn("Watch directory does not exist, skipping.", "pattern", rule.Pattern, "dir", dir)
				continue
			}
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info("👀 Watching for changes.", "rules", len(t.Rules()), "dirs", len(watched))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watch, waiting for in-flight runs.")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(fsw, event.Name, watched); err != nil {
						logger.Warn("Failed to watch new directory.", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			t.Dispatch(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)
		}
	}
}

// addRecursive adds dir and every directory below it.
func addRecursive(fsw *fsnotify.Watcher, dir string, watched map[string]bool) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || watched[p] {
			return nil
		}
		if err := fsw.Add(p); err != nil {
			return err
		}
		watched[p] = true
		return nil
	})
}
