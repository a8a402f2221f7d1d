package app

import (
	"context"
	"fmt"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// Run executes the configured tasks. On a dry run it prints their plan
// instead, and with ListTasks set it prints the registry.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "tasks", a.config.Tasks)

	if a.config.ListTasks {
		a.ListTasks()
		return nil
	}

	if a.config.Release {
		fmt.Fprintln(a.outW, releaseBanner())
	}

	graph := a.registry.Graph
	if a.config.DryRun {
		plan, err := graph.Plan(a.config.Tasks...)
		if err != nil {
			return fmt.Errorf("failed to plan tasks: %w", err)
		}
		printPlan(a.outW, plan, graph)
		return nil
	}

	a.logger.Info("🚀 Starting build...", "tasks", a.config.Tasks, "release", a.config.Release)
	result, err := graph.Run(ctx, a.config.Tasks...)
	if result != nil {
		printSummary(a.outW, result)
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// ListTasks prints every registered task with its dependencies.
func (a *App) ListTasks() {
	printTasks(a.outW, a.registry.Graph.Tasks())
}
