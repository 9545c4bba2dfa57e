package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanGeneralStrategy(t *testing.T) {
	p := NewPlanner(DefaultBudget())

	spec := p.Plan("history of the transistor", Classification{Domain: DomainGeneral})
	require.Len(t, spec.PlannedActions, 2)
	assert.Equal(t, "history of the transistor", spec.PlannedActions[0].Query)
	assert.Equal(t, "history of the transistor overview", spec.PlannedActions[1].Query)
	for _, a := range spec.PlannedActions {
		assert.Equal(t, "search", a.Type)
		assert.Equal(t, "google", a.Source)
		assert.NotEmpty(t, a.ID)
	}
}

func TestPlanGeneralTaskOrientedVariant(t *testing.T) {
	p := NewPlanner(DefaultBudget())

	spec := p.Plan("fix a leaking faucet", Classification{Domain: DomainGeneral, Troubleshooting: true})
	require.Len(t, spec.PlannedActions, 2)
	assert.Equal(t, "how to fix a leaking faucet", spec.PlannedActions[1].Query)
}

func TestPlanLocalStrategy(t *testing.T) {
	p := NewPlanner(DefaultBudget())

	spec := p.Plan("thai restaurants", Classification{Domain: DomainGeneral, Local: true})
	require.Len(t, spec.PlannedActions, 2)
	assert.Equal(t, "thai restaurants near me", spec.PlannedActions[0].Query)
	assert.Equal(t, "thai restaurants hours reviews", spec.PlannedActions[1].Query)

	spec = p.Plan("thai restaurants", Classification{
		Domain: DomainGeneral, Local: true, TimeIntent: TimeImmediate,
	})
	assert.Equal(t, "thai restaurants hours this weekend", spec.PlannedActions[1].Query)
}

func TestPlanTechStrategy(t *testing.T) {
	p := NewPlanner(DefaultBudget())

	spec := p.Plan("evaluate OpenClaw for our team", Classification{
		Domain:      DomainSoftware,
		EntityHints: []string{"OpenClaw"},
	})
	require.Len(t, spec.PlannedActions, 2)
	assert.Contains(t, spec.PlannedActions[0].Query, "site:docs.")
	assert.Contains(t, spec.PlannedActions[0].Query, "openclaw")
	assert.Contains(t, spec.PlannedActions[1].Query, "site:github.com")

	// Safety intent adds the third query.
	spec = p.Plan("evaluate OpenClaw security", Classification{
		Domain:      DomainSoftware,
		EntityHints: []string{"OpenClaw"},
		Safety:      true,
	})
	require.Len(t, spec.PlannedActions, 3)
	assert.Contains(t, spec.PlannedActions[2].Query, "security")
}

func TestPlanQueriesAreSanitized(t *testing.T) {
	p := NewPlanner(DefaultBudget())

	spec := p.Plan("What's the best CVE scanner?!", Classification{Domain: DomainGeneral})
	for _, a := range spec.PlannedActions {
		assert.Equal(t, Sanitize(a.Query, DomainGeneral), a.Query, "queries come out sanitized")
		assert.NotContains(t, a.Query, "cve")
	}
}

func TestPlanRespectsBudgetAndFallback(t *testing.T) {
	p := NewPlanner(Budget{MaxActions: 1, MaxBatches: 2, MaxTimeSeconds: 60})

	spec := p.Plan("anything at all", Classification{Domain: DomainGeneral})
	assert.Len(t, spec.PlannedActions, 1)
	assert.LessOrEqual(t, len(spec.PlannedActions), spec.Budget.MaxActions)

	// A goal that sanitizes to nothing still yields the raw-goal fallback.
	spec = p.Plan("???", Classification{Domain: DomainGeneral})
	require.Len(t, spec.PlannedActions, 1)
}
