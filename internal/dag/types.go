package dag

import (
	"context"
	"fmt"
	"sync"
)

// Status is the transient state of a task within a single run.
type Status int32

const (
	Pending Status = iota
	Running
	Done
	Failed
	Skipped
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Terminal reports whether the status is final for the run.
func (s Status) Terminal() bool {
	return s == Done || s == Failed || s == Skipped
}

// Action is the work attached to a task. It returns a Future that resolves
// when the work is complete; use Sync or Async to adapt plain functions.
type Action func(ctx context.Context) *Future

// ReleaseFunc tears down whatever a resource task acquired.
type ReleaseFunc func(ctx context.Context) error

// Task is a registered unit of work. It is immutable after registration.
type Task struct {
	Name        string
	Deps        []string
	Description string

	action  Action
	release ReleaseFunc
}

// IsResource reports whether the task holds something that must be released.
func (t *Task) IsResource() bool {
	return t.release != nil
}

// TaskOption customises a task at registration time.
type TaskOption func(*Task)

// WithRelease marks the task as a resource. The release function runs once
// after all of the task's dependents in a run have finished, regardless of
// their outcome. It never runs if the task's own action failed.
func WithRelease(fn ReleaseFunc) TaskOption {
	return func(t *Task) {
		t.release = fn
	}
}

// WithDescription attaches a one-line description shown in task listings.
func WithDescription(desc string) TaskOption {
	return func(t *Task) {
		t.Description = desc
	}
}

// Graph is the registry of tasks. Registration and runs are safe for
// concurrent use; a watch trigger issues runs while others may be in flight.
type Graph struct {
	// mutex protects the tasks map and declaration order.
	mutex sync.RWMutex
	// tasks stores all registered tasks keyed by name.
	tasks map[string]*Task
	// order keeps declaration order for deterministic planning.
	order []string
	// maxParallel bounds in-flight actions per run; 0 means unbounded.
	maxParallel int
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithMaxParallel bounds how many actions a single run keeps in flight.
func WithMaxParallel(n int) GraphOption {
	return func(g *Graph) {
		if n > 0 {
			g.maxParallel = n
		}
	}
}
