package dag

// New creates and returns an initialized, empty Graph.
func New(opts ...GraphOption) *Graph {
	g := &Graph{
		tasks: make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a task to the registry. Dependencies may name tasks that are
// registered later; they are resolved when a run is planned. A nil action
// registers an alias that only groups its dependencies.
func (g *Graph) Register(name string, deps []string, action Action, opts ...TaskOption) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.tasks[name]; ok {
		return &DuplicateTaskError{Name: name}
	}
	if action == nil {
		action = Noop()
	}

	t := &Task{
		Name:   name,
		Deps:   append([]string(nil), deps...),
		action: action,
	}
	for _, opt := range opts {
		opt(t)
	}

	g.tasks[name] = t
	g.order = append(g.order, name)
	return nil
}

// Tasks returns the registered tasks in declaration order.
func (g *Graph) Tasks() []*Task {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]*Task, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.tasks[name])
	}
	return out
}

// Lookup returns the task registered under name.
func (g *Graph) Lookup(name string) (*Task, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	t, ok := g.tasks[name]
	return t, ok
}

// Plan is a validated execution plan for one run.
type Plan struct {
	// Requested holds the names the caller asked for, deduplicated.
	Requested []string
	// Order lists every task of the plan so that dependencies precede
	// their dependents.
	Order []string

	tasks map[string]*Task
}

// Plan resolves names and their transitive dependencies. It fails with
// UnknownTaskError or CyclicDependencyError without executing anything.
func (g *Graph) Plan(names ...string) (*Plan, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.plan(names)
}

func (g *Graph) plan(names []string) (*Plan, error) {
	p := &Plan{tasks: make(map[string]*Task)}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := g.tasks[name]; !ok {
			return nil, &UnknownTaskError{Name: name}
		}
		if !seen[name] {
			seen[name] = true
			p.Requested = append(p.Requested, name)
		}
	}

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and known to be acyclic.
	// temporary: on the current recursion stack.
	// unvisited: everything else.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(t *Task) error
	visit = func(t *Task) error {
		if permanent[t.Name] {
			return nil
		}
		if temporary[t.Name] {
			return &CyclicDependencyError{Cycle: cycleFrom(stack, t.Name)}
		}

		temporary[t.Name] = true
		stack = append(stack, t.Name)

		for _, depName := range t.Deps {
			dep, ok := g.tasks[depName]
			if !ok {
				return &UnknownTaskError{Name: depName, RequiredBy: t.Name}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, t.Name)
		permanent[t.Name] = true

		p.tasks[t.Name] = t
		p.Order = append(p.Order, t.Name)
		return nil
	}

	for _, name := range p.Requested {
		if err := visit(g.tasks[name]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// cycleFrom extracts the cycle ending at name from the recursion stack.
func cycleFrom(stack []string, name string) []string {
	for i, s := range stack {
		if s == name {
			cycle := append([]string(nil), stack[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}
