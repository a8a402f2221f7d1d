package dag

import (
	"context"
	"fmt"
	"sync"
)

// Future is the completion signal of a task action. It resolves exactly once;
// later Resolve calls are ignored.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that is already complete with err.
func Resolved(err error) *Future {
	f := NewFuture()
	f.Resolve(err)
	return f
}

// Go runs fn on a new goroutine and returns a Future for its result. A panic
// in fn resolves the Future with an error.
func Go(fn func() error) *Future {
	f := NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Resolve(fmt.Errorf("panic: %v", r))
			}
		}()
		f.Resolve(fn())
	}()
	return f
}

// Resolve completes the Future with err.
func (f *Future) Resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the Future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the Future resolves and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

// Await is Wait bounded by ctx. Returning early does not cancel the work.
func (f *Future) Await(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync adapts a blocking function into an Action; the Future it returns is
// already resolved.
func Sync(fn func(ctx context.Context) error) Action {
	return func(ctx context.Context) *Future {
		return Resolved(fn(ctx))
	}
}

// Async adapts a function into an Action that runs on its own goroutine.
func Async(fn func(ctx context.Context) error) Action {
	return func(ctx context.Context) *Future {
		return Go(func() error { return fn(ctx) })
	}
}

// Noop is the action of pure alias tasks such as "build".
func Noop() Action {
	return func(context.Context) *Future {
		return Resolved(nil)
	}
}
