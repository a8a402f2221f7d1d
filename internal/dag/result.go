package dag

import "sort"

// Result is the outcome of one run. It is complete once Run returns.
type Result struct {
	// RunID identifies the run in logs.
	RunID string
	// Order lists tasks in the order their actions finished, successful or not.
	Order []string

	statuses map[string]Status
	errs     map[string]error
}

func newResult(runID string, plan *Plan) *Result {
	r := &Result{
		RunID:    runID,
		statuses: make(map[string]Status, len(plan.Order)),
		errs:     make(map[string]error),
	}
	for _, name := range plan.Order {
		r.statuses[name] = Pending
	}
	return r
}

// Status returns the final status of a task in this run. Tasks outside the
// plan report Pending.
func (r *Result) Status(name string) Status {
	return r.statuses[name]
}

// Err returns the error recorded for a task, if any.
func (r *Result) Err(name string) error {
	return r.errs[name]
}

// Tasks returns the names of every task with the given status, in completion
// order; tasks that never ran follow alphabetically.
func (r *Result) Tasks(status Status) []string {
	var out []string
	seen := make(map[string]bool)
	for _, name := range r.Order {
		if r.statuses[name] == status {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name, s := range r.statuses {
		if s == status && !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Succeeded reports whether every planned task finished successfully.
func (r *Result) Succeeded() bool {
	for _, s := range r.statuses {
		if s != Done {
			return false
		}
	}
	return true
}
