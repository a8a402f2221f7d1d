package dag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/buildgrid/internal/ctxlog"
)

// runNode is the per-run state attached to a planned task. It is owned by
// the coordinating goroutine and never touched by actions.
type runNode struct {
	task   *Task
	status Status
	err    error

	deps       []*runNode
	dependents []*runNode

	// depCount is the number of dependencies that have not completed yet.
	depCount int
	// holders is the number of dependents that have not reached a terminal
	// state. A resource is released when it drops to zero.
	holders  int
	released bool
}

// completion is sent back to the coordinator when an action's Future resolves.
type completion struct {
	node *runNode
	err  error
}

// execution holds the state of a single run.
type execution struct {
	plan        *Plan
	nodes       map[string]*runNode
	ordered     []*runNode
	result      *Result
	maxParallel int

	completions chan completion
	releases    sync.WaitGroup
	releaseMu   sync.Mutex
	releaseErrs []error
}

// Run plans names and executes the plan. Planning errors are returned before
// any action starts. Execution errors are reported as *TaskError values
// naming the failing task; the Result shows partial completion either way.
func (g *Graph) Run(ctx context.Context, names ...string) (*Result, error) {
	g.mutex.RLock()
	plan, err := g.plan(names)
	maxParallel := g.maxParallel
	g.mutex.RUnlock()
	if err != nil {
		return nil, err
	}
	return execute(ctx, plan, maxParallel)
}

func execute(ctx context.Context, plan *Plan, maxParallel int) (*Result, error) {
	runID := uuid.NewString()
	ctx, logger := ctxlog.WithAttrs(ctx, "run_id", runID)

	e := &execution{
		plan:        plan,
		nodes:       make(map[string]*runNode, len(plan.Order)),
		result:      newResult(runID, plan),
		maxParallel: maxParallel,
		completions: make(chan completion, len(plan.Order)),
	}
	for _, name := range plan.Order {
		n := &runNode{task: plan.tasks[name]}
		e.nodes[name] = n
		e.ordered = append(e.ordered, n)
	}
	for _, n := range e.ordered {
		for _, depName := range n.task.Deps {
			dep := e.nodes[depName]
			// A dependency listed twice still counts once.
			if containsNode(n.deps, dep) {
				continue
			}
			n.deps = append(n.deps, dep)
			dep.dependents = append(dep.dependents, n)
		}
		n.depCount = len(n.deps)
	}
	for _, n := range e.ordered {
		n.holders = len(n.dependents)
	}

	logger.Info("🚀 Starting run", "requested", plan.Requested, "tasks", len(plan.Order))

	var ready []*runNode
	for _, n := range e.ordered {
		if n.depCount == 0 {
			logger.Debug("Found root task.", "task", n.task.Name)
			ready = append(ready, n)
		}
	}

	remaining := len(e.ordered)
	inflight := 0
	for remaining > 0 {
		for len(ready) > 0 && (e.maxParallel <= 0 || inflight < e.maxParallel) {
			n := ready[0]
			ready = ready[1:]
			n.status = Running
			e.result.statuses[n.task.Name] = Running
			inflight++
			go e.dispatch(ctx, n)
		}
		if inflight == 0 {
			// Every remaining task is blocked; only possible if the plan is
			// inconsistent, which planning rules out.
			break
		}

		c := <-e.completions
		inflight--
		finished, unlocked := e.complete(ctx, c)
		remaining -= finished
		ready = append(ready, unlocked...)
	}

	// Anything still holding a resource at this point has no dependents left
	// in the run; release it now.
	for _, n := range e.ordered {
		e.maybeRelease(ctx, n, true)
	}
	e.releases.Wait()

	return e.result, e.err(ctx)
}

// dispatch runs a task's action and waits for its Future off the
// coordinating goroutine.
func (e *execution) dispatch(ctx context.Context, n *runNode) {
	taskCtx, logger := ctxlog.WithAttrs(ctx, "task", n.task.Name)
	logger.Info("▶️ Starting task")

	var fut *Future
	func() {
		defer func() {
			if r := recover(); r != nil {
				fut = Resolved(fmt.Errorf("panic: %v", r))
			}
		}()
		fut = n.task.action(taskCtx)
	}()

	var err error
	if fut != nil {
		err = fut.Wait()
	}
	e.completions <- completion{node: n, err: err}
}

// complete records an action outcome. It returns how many tasks reached a
// terminal state and which dependents became ready.
func (e *execution) complete(ctx context.Context, c completion) (int, []*runNode) {
	logger := ctxlog.FromContext(ctx).With("task", c.node.task.Name)
	n := c.node
	e.result.Order = append(e.result.Order, n.task.Name)

	if c.err != nil {
		logger.Error("Task failed.", "error", c.err)
		n.status = Failed
		n.err = c.err
		e.result.statuses[n.task.Name] = Failed
		e.result.errs[n.task.Name] = c.err
		finished := 1 + e.skipDependents(ctx, n)
		e.finish(ctx, n)
		return finished, nil
	}

	logger.Info("✅ Finished task")
	n.status = Done
	e.result.statuses[n.task.Name] = Done

	var unlocked []*runNode
	for _, dependent := range n.dependents {
		dependent.depCount--
		if dependent.depCount == 0 && dependent.status == Pending {
			logger.Debug("Unlocking dependent task.", "dependent", dependent.task.Name)
			unlocked = append(unlocked, dependent)
		}
	}
	e.finish(ctx, n)
	// Its dependents may all have been skipped while it was still running.
	e.maybeRelease(ctx, n, false)
	return 1, unlocked
}

// skipDependents recursively marks all not-yet-started downstream tasks as
// skipped and returns how many were marked.
func (e *execution) skipDependents(ctx context.Context, n *runNode) int {
	logger := ctxlog.FromContext(ctx)
	count := 0
	for _, dependent := range n.dependents {
		if dependent.status != Pending {
			continue
		}
		logger.Warn("Skipping dependent task due to upstream failure.", "task", dependent.task.Name, "dependency", n.task.Name)
		dependent.status = Skipped
		dependent.err = fmt.Errorf("skipped due to upstream failure of %q", n.task.Name)
		e.result.statuses[dependent.task.Name] = Skipped
		e.result.errs[dependent.task.Name] = dependent.err
		count++
		count += e.skipDependents(ctx, dependent)
		e.finish(ctx, dependent)
	}
	return count
}

// finish is called once per task that reached a terminal state. It lets go of
// the task's dependencies and releases resources nobody holds any more.
func (e *execution) finish(ctx context.Context, n *runNode) {
	for _, dep := range n.deps {
		dep.holders--
		e.maybeRelease(ctx, dep, false)
	}
}

// maybeRelease schedules a resource's release once. At the end of the run
// (force) holders are ignored.
func (e *execution) maybeRelease(ctx context.Context, n *runNode, force bool) {
	if n.task.release == nil || n.released || n.status != Done {
		return
	}
	if !force && n.holders > 0 {
		return
	}
	if !force && len(n.dependents) == 0 {
		// Requested directly; it lives until the run ends.
		return
	}
	n.released = true

	e.releases.Add(1)
	go func() {
		defer e.releases.Done()
		relCtx, logger := ctxlog.WithAttrs(ctx, "task", n.task.Name)
		logger.Info("🔥 Releasing resource")
		if err := n.task.release(relCtx); err != nil {
			logger.Error("Resource release failed.", "error", err)
			e.releaseMu.Lock()
			e.releaseErrs = append(e.releaseErrs, &TaskError{Task: n.task.Name, Err: fmt.Errorf("release: %w", err)})
			e.releaseMu.Unlock()
		}
	}()
}

// err builds the run error from failed tasks, root causes first.
func (e *execution) err(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, name := range e.result.Order {
		if e.result.statuses[name] == Failed {
			errs = append(errs, &TaskError{Task: name, Err: e.result.errs[name]})
		}
	}
	errs = append(errs, e.releaseErrs...)

	switch len(errs) {
	case 0:
		logger.Info("🏁 Run finished.")
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

func containsNode(nodes []*runNode, n *runNode) bool {
	for _, m := range nodes {
		if m == n {
			return true
		}
	}
	return false
}
