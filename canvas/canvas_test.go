package canvas

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `version: 1
name: Customer onboarding
phases:
  - id: intake
    name: Intake
  - id: review
    name: Review
agents:
  - id: collector
    name: Document collector
    phase: intake
    tools: [email, ocr]
  - id: checker
    name: Compliance checker
    phase: review
    role: KYC analyst
    tools: [sanctions-db]
    depends_on: [collector]
  - id: notifier
    name: Notifier
    phase: review
    tools: [email]
    depends_on: [checker]
`

func sample(t *testing.T) *Workflow {
	t.Helper()
	w, err := ParseYAML(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	return w
}

func TestParseYAML(t *testing.T) {
	w := sample(t)
	assert.Equal(t, "Customer onboarding", w.Name)
	require.Len(t, w.Phases, 2)
	require.Len(t, w.Agents, 3)
	assert.Equal(t, []string{"collector"}, w.Agents[1].DependsOn)
	assert.Equal(t, []string{"email", "ocr", "sanctions-db"}, w.Tools())
}

func TestParseYAMLDefaultsVersion(t *testing.T) {
	doc := strings.Replace(sampleYAML, "version: 1\n", "", 1)
	w, err := ParseYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, w.Version)
}

func TestParseYAMLRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"unknown field":  strings.Replace(sampleYAML, "name: Notifier", "name: Notifier\n    colour: red", 1),
		"not yaml":       "{{{",
		"future version": strings.Replace(sampleYAML, "version: 1", "version: 9", 1),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseYAML(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
		})
	}

	huge := strings.Repeat("#", MaxDocumentSize+1)
	_, err := ParseYAML(strings.NewReader(huge))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestExportRoundTrip(t *testing.T) {
	w := sample(t)

	var buf bytes.Buffer
	require.NoError(t, ExportYAML(&buf, w))
	assert.Contains(t, buf.String(), "depends_on:")

	again, err := ParseYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, w, again)
}

func TestExportRejectsInvalid(t *testing.T) {
	w := sample(t)
	w.Agents[0].Phase = "nowhere"
	var buf bytes.Buffer
	assert.ErrorIs(t, ExportYAML(&buf, w), ErrInvalidWorkflow)
	assert.Zero(t, buf.Len())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(w *Workflow)
		want   string
	}{
		{"duplicate agent", func(w *Workflow) { w.Agents[2].ID = "checker" }, `duplicate agent id "checker"`},
		{"duplicate phase", func(w *Workflow) { w.Phases[1].ID = "intake" }, `duplicate phase id "intake"`},
		{"unknown phase", func(w *Workflow) { w.Agents[0].Phase = "ship" }, `unknown phase "ship"`},
		{"dangling dependency", func(w *Workflow) { w.Agents[2].DependsOn = []string{"ghost"} }, `unknown agent "ghost"`},
		{"self dependency", func(w *Workflow) { w.Agents[0].DependsOn = []string{"collector"} }, "depends on itself"},
		{"cycle", func(w *Workflow) { w.Agents[0].DependsOn = []string{"notifier"} }, "dependency cycle collector -> notifier -> checker -> collector"},
		{"missing name", func(w *Workflow) { w.Name = " " }, "name is required"},
		{"no phases", func(w *Workflow) { w.Phases = nil; w.Agents = nil }, "at least one phase"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := sample(t)
			tc.mutate(w)
			err := Validate(w)
			require.ErrorIs(t, err, ErrInvalidWorkflow)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	assert.NoError(t, Validate(sample(t)))
	assert.ErrorIs(t, Validate(nil), ErrInvalidWorkflow)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	w := sample(t)
	w.Name = ""
	w.Agents[0].Phase = "ship"
	w.Agents[2].DependsOn = []string{"ghost"}

	var verr *ValidationError
	require.ErrorAs(t, Validate(w), &verr)
	assert.Len(t, verr.Problems, 3)
}

func TestGroupByPhase(t *testing.T) {
	groups := sample(t).GroupByPhase()
	require.Len(t, groups, 2)
	assert.Equal(t, "intake", groups[0].Phase.ID)
	assert.Len(t, groups[0].Agents, 1)
	assert.Equal(t, "review", groups[1].Phase.ID)
	assert.Equal(t, "checker", groups[1].Agents[0].ID)
	assert.Equal(t, "notifier", groups[1].Agents[1].ID)

	var nilWorkflow *Workflow
	assert.Nil(t, nilWorkflow.GroupByPhase())
}

func TestFilter(t *testing.T) {
	w := sample(t)
	ids := func(as []Agent) []string {
		out := make([]string, 0, len(as))
		for _, a := range as {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"collector", "checker", "notifier"}, ids(w.Filter(Query{})))
	assert.Equal(t, []string{"checker", "notifier"}, ids(w.Filter(Query{Phase: "review"})))
	assert.Equal(t, []string{"collector", "notifier"}, ids(w.Filter(Query{Tool: "EMAIL"})))
	assert.Equal(t, []string{"checker"}, ids(w.Filter(Query{Text: "kyc"})))
	assert.Equal(t, []string{"notifier"}, ids(w.Filter(Query{Phase: "review", Tool: "email"})))
	assert.Empty(t, w.Filter(Query{Text: "nothing matches"}))
}

func TestAgentLookup(t *testing.T) {
	w := sample(t)
	a, ok := w.Agent("checker")
	require.True(t, ok)
	assert.Equal(t, "Compliance checker", a.Name)
	_, ok = w.Agent("ghost")
	assert.False(t, ok)
}
