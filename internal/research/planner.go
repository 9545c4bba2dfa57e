package research

import (
	"fmt"
	"strings"
)

// Planner turns a classified prompt into a task spec with planned actions.
// Strategies are deterministic: no LLM call happens here.
type Planner struct {
	budget Budget
}

// NewPlanner returns a planner with the given budget. A zero budget uses
// the default.
func NewPlanner(budget Budget) *Planner {
	if budget.MaxActions <= 0 {
		budget = DefaultBudget()
	}
	return &Planner{budget: budget}
}

// Plan builds the task spec for a prompt. Every query goes through the
// sanitizer; an empty strategy output falls back to one raw-goal search.
func (p *Planner) Plan(prompt string, c Classification) TaskSpec {
	goal := strings.TrimSpace(prompt)

	var queries []plannedQuery
	switch {
	case c.Local:
		queries = localStrategy(goal, c)
	case c.Domain == DomainSoftware && len(c.EntityHints) > 0:
		queries = techStrategy(goal, c)
	default:
		queries = generalStrategy(goal, c)
	}

	actions := make([]PlannedAction, 0, len(queries))
	seen := make(map[string]bool)
	for _, q := range queries {
		clean := Sanitize(q.query, c.Domain)
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		actions = append(actions, newAction(clean, 0, q.reason))
		if len(actions) >= p.budget.MaxActions {
			break
		}
	}
	if len(actions) == 0 {
		fallback := Sanitize(goal, c.Domain)
		if fallback == "" {
			fallback = goal
		}
		actions = append(actions, newAction(fallback, 0, "raw goal fallback"))
	}

	return TaskSpec{
		UserGoal:        goal,
		SuccessCriteria: deriveCriteria(goal, c),
		Budget:          p.budget,
		PlannedActions:  actions,
		Domain:          c.Domain,
	}
}

type plannedQuery struct {
	query  string
	reason string
}

// generalStrategy issues the goal itself plus one broadening query.
func generalStrategy(goal string, c Classification) []plannedQuery {
	queries := []plannedQuery{{query: goal, reason: "direct goal search"}}
	if c.Purchase || c.Troubleshooting {
		queries = append(queries, plannedQuery{
			query:  "how to " + goal,
			reason: "task-oriented variant",
		})
	} else {
		queries = append(queries, plannedQuery{
			query:  goal + " overview",
			reason: "broaden context",
		})
	}
	return queries
}

// localStrategy targets place-and-hours results.
func localStrategy(goal string, c Classification) []plannedQuery {
	queries := []plannedQuery{{
		query:  goal + " near me",
		reason: "local intent",
	}}
	if c.TimeIntent == TimeImmediate || c.TimeIntent == TimeFuture {
		queries = append(queries, plannedQuery{
			query:  goal + " hours this weekend",
			reason: "time-sensitive local detail",
		})
	} else {
		queries = append(queries, plannedQuery{
			query:  goal + " hours reviews",
			reason: "local detail",
		})
	}
	return queries
}

// techStrategy builds documentation-first searches from the top entity.
func techStrategy(goal string, c Classification) []plannedQuery {
	entity := c.EntityHints[0]
	queries := []plannedQuery{
		{
			query:  fmt.Sprintf("site:docs.* %s (install OR docs OR getting started)", entity),
			reason: "official documentation",
		},
		{
			query:  fmt.Sprintf("site:github.com %s README", entity),
			reason: "source repository",
		},
	}
	if c.Safety {
		queries = append(queries, plannedQuery{
			query:  goal + " (security OR sandbox OR permissions)",
			reason: "safety posture",
		})
	}
	return queries
}

// deriveCriteria produces the success criteria the executor will cover.
func deriveCriteria(goal string, c Classification) []string {
	switch c.Domain {
	case DomainSoftware:
		criteria := []string{"official documentation or repository"}
		if c.Safety {
			criteria = append(criteria, "security review process")
		}
		return criteria
	case DomainPhysicalProcess:
		return []string{"process overview", "safety and compliance"}
	default:
		if c.Local {
			return []string{"location and hours"}
		}
		return []string{"overview from a reliable source"}
	}
}
