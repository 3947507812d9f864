package canvas

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrInvalidWorkflow is wrapped by every validation failure.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// ValidationError lists every problem found in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

// Validate reports all structural problems in w, or nil.
func Validate(w *Workflow) error {
	if w == nil {
		return &ValidationError{Problems: []string{"workflow is empty"}}
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if w.Version != CurrentVersion {
		add("unsupported version %d", w.Version)
	}
	if strings.TrimSpace(w.Name) == "" {
		add("name is required")
	}
	if len(w.Phases) == 0 {
		add("at least one phase is required")
	}

	for i, p := range w.Phases {
		if strings.TrimSpace(p.ID) == "" {
			add("phase %d has no id", i)
		}
	}
	for _, id := range lo.FindDuplicates(lo.Map(w.Phases, func(p Phase, _ int) string { return p.ID })) {
		add("duplicate phase id %q", id)
	}

	phases := lo.SliceToMap(w.Phases, func(p Phase) (string, struct{}) { return p.ID, struct{}{} })
	agents := lo.SliceToMap(w.Agents, func(a Agent) (string, struct{}) { return a.ID, struct{}{} })

	for i, a := range w.Agents {
		if strings.TrimSpace(a.ID) == "" {
			add("agent %d has no id", i)
			continue
		}
		if _, ok := phases[a.Phase]; !ok {
			add("agent %q is in unknown phase %q", a.ID, a.Phase)
		}
		for _, dep := range a.DependsOn {
			if dep == a.ID {
				add("agent %q depends on itself", a.ID)
				continue
			}
			if _, ok := agents[dep]; !ok {
				add("agent %q depends on unknown agent %q", a.ID, dep)
			}
		}
	}
	for _, id := range lo.FindDuplicates(lo.Map(w.Agents, func(a Agent, _ int) string { return a.ID })) {
		add("duplicate agent id %q", id)
	}

	if cycle := findCycle(w.Agents); len(cycle) > 0 {
		add("dependency cycle %s", strings.Join(cycle, " -> "))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// findCycle returns the first dependency cycle found, closed on its first
// element, or nil. Self-edges and unknown ids are reported elsewhere.
func findCycle(agents []Agent) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	deps := make(map[string][]string, len(agents))
	for _, a := range agents {
		deps[a.ID] = append(deps[a.ID], a.DependsOn...)
	}
	state := make(map[string]int, len(agents))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			if dep == id {
				continue
			}
			if _, known := deps[dep]; !known {
				continue
			}
			switch state[dep] {
			case visiting:
				start := lo.IndexOf(stack, dep)
				return append(append([]string{}, stack[start:]...), dep)
			case unvisited:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, a := range agents {
		if state[a.ID] == unvisited {
			if c := visit(a.ID); c != nil {
				return c
			}
		}
	}
	return nil
}
