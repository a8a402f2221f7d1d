package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// ValidateRegistry checks that every registered task can be planned and that
// every watch rule names registered tasks.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, task := range r.Graph.Tasks() {
		if _, err := r.Graph.Plan(task.Name); err != nil {
			errs = append(errs, fmt.Sprintf("task '%s': %v", task.Name, err))
		}
	}

	for _, rule := range r.Model.Watches {
		for _, name := range rule.Tasks {
			if _, ok := r.Graph.Lookup(name); !ok {
				errs = append(errs, fmt.Sprintf("watch '%s': task '%s' is not registered", rule.Pattern, name))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("registry validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validation passed.", "tasks", len(r.Graph.Tasks()))
	return nil
}
