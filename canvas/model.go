package canvas

import (
	"strings"

	"github.com/samber/lo"
)

// CurrentVersion is written by ExportYAML and accepted by ParseYAML.
const CurrentVersion = 1

// Workflow is one canvas.
type Workflow struct {
	Version     int     `yaml:"version" json:"version"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Phases      []Phase `yaml:"phases" json:"phases"`
	Agents      []Agent `yaml:"agents" json:"agents"`
}

// Phase is a column on the canvas. Phases run in declaration order.
type Phase struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Agent is one node on the canvas.
type Agent struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Phase       string   `yaml:"phase" json:"phase"`
	Role        string   `yaml:"role,omitempty" json:"role,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tools       []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`
}

// PhaseGroup is a phase with the agents placed in it.
type PhaseGroup struct {
	Phase  Phase
	Agents []Agent
}

// GroupByPhase returns one group per declared phase, in declaration order,
// each holding its agents in declaration order. Agents naming an unknown
// phase are left out.
func (w *Workflow) GroupByPhase() []PhaseGroup {
	if w == nil {
		return nil
	}
	byPhase := lo.GroupBy(w.Agents, func(a Agent) string { return a.Phase })
	return lo.Map(w.Phases, func(p Phase, _ int) PhaseGroup {
		return PhaseGroup{Phase: p, Agents: byPhase[p.ID]}
	})
}

// Query selects agents. Empty fields match everything.
type Query struct {
	Phase string
	Tool  string
	// Text matches case-insensitively against id, name, role and description.
	Text string
}

// Filter returns the agents matching every non-empty field of q.
func (w *Workflow) Filter(q Query) []Agent {
	if w == nil {
		return nil
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	return lo.Filter(w.Agents, func(a Agent, _ int) bool {
		if q.Phase != "" && a.Phase != q.Phase {
			return false
		}
		if q.Tool != "" && !lo.ContainsBy(a.Tools, func(t string) bool { return strings.EqualFold(t, q.Tool) }) {
			return false
		}
		if text == "" {
			return true
		}
		return lo.SomeBy([]string{a.ID, a.Name, a.Role, a.Description}, func(s string) bool {
			return strings.Contains(strings.ToLower(s), text)
		})
	})
}

// Agent returns the agent with id.
func (w *Workflow) Agent(id string) (Agent, bool) {
	if w == nil {
		return Agent{}, false
	}
	return lo.Find(w.Agents, func(a Agent) bool { return a.ID == id })
}

// Tools returns every distinct tool in the workflow, in first-use order.
func (w *Workflow) Tools() []string {
	if w == nil {
		return nil
	}
	return lo.Uniq(lo.FlatMap(w.Agents, func(a Agent, _ int) []string { return a.Tools }))
}
