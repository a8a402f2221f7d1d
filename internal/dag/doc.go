// Package dag is the task graph of the build. Tasks are registered once with
// their dependency names and an action; each Run resolves the requested
// names plus their transitive dependencies into a plan, validates it (unknown
// names, cycles) before anything executes, and then drives the plan from a
// single coordinating goroutine.
//
// Within one run a task executes at most once no matter how many dependents
// reference it. Independent tasks run concurrently. When a task fails, its
// not-yet-started dependents are skipped while unrelated chains finish.
//
// Actions return a Future so synchronous and asynchronous work are awaited the
// same way. Tasks registered WithRelease behave as resources: their release
// function runs exactly once, after every dependent in the run has finished.
package dag
