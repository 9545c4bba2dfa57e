// Package research turns a user prompt into a grounded multi-source answer:
// it classifies the prompt, plans searches, drives them through the page
// pool, records and classifies sources, and gates on coverage before the
// host LLM loop is allowed to synthesize.
package research

import (
	"time"

	"github.com/google/uuid"
)

// Domain steers strategy selection and host classification.
type Domain string

const (
	DomainSoftware        Domain = "SOFTWARE"
	DomainPhysicalProcess Domain = "PHYSICAL_PROCESS"
	DomainGeneral         Domain = "GENERAL"
)

// TimeIntent captures whether the prompt is about the present or the future.
type TimeIntent string

const (
	TimeImmediate TimeIntent = "IMMEDIATE"
	TimeFuture    TimeIntent = "FUTURE"
	TimeUnknown   TimeIntent = "UNKNOWN"
)

// Classification is the router's read of a prompt.
type Classification struct {
	Domain     Domain     `json:"domain"`
	TimeIntent TimeIntent `json:"time_intent"`
	// EntityHints are capitalized or CamelCase token runs from the raw
	// message, best candidate first, at most six.
	EntityHints []string `json:"entity_hints,omitempty"`

	Local           bool `json:"local"`
	Purchase        bool `json:"purchase"`
	Troubleshooting bool `json:"troubleshooting"`
	Safety          bool `json:"safety"`
}

// Budget bounds one execution.
type Budget struct {
	MaxActions     int `json:"max_actions"`
	MaxBatches     int `json:"max_batches"`
	MaxTimeSeconds int `json:"max_time_seconds"`
}

// DefaultBudget returns the standard research budget.
func DefaultBudget() Budget {
	return Budget{MaxActions: 6, MaxBatches: 2, MaxTimeSeconds: 120}
}

// PlannedAction is a single search the executor will run.
type PlannedAction struct {
	ID       string `json:"id"`
	Type     string `json:"type"`   // always "search"
	Source   string `json:"source"` // always "google"
	Query    string `json:"query"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

func newAction(query string, priority int, reason string) PlannedAction {
	return PlannedAction{
		ID:       uuid.NewString(),
		Type:     "search",
		Source:   "google",
		Query:    query,
		Priority: priority,
		Reason:   reason,
	}
}

// TaskSpec is the planner's output: what to research and within what bounds.
type TaskSpec struct {
	UserGoal          string          `json:"user_goal"`
	SuccessCriteria   []string        `json:"success_criteria"`
	DeliverableSchema string          `json:"deliverable_schema,omitempty"`
	Budget            Budget          `json:"budget"`
	PlannedActions    []PlannedAction `json:"planned_actions"`
	Domain            Domain          `json:"domain"`
}

// Tier is the ordinal trust ranking of a source host.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// SourcePreview is one recorded source with its classification. Tier and
// primary-eligibility are fixed at classification time and never mutated.
type SourcePreview struct {
	SourceID      string `json:"source_id"`
	URL           string `json:"url"`
	Host          string `json:"host"`
	Title         string `json:"title"`
	Snippet       string `json:"snippet,omitempty"`
	SourceKind    string `json:"source_kind"`
	Tier          Tier   `json:"source_tier"`
	Eligible      bool   `json:"eligible_for_synthesis"`
	Primary       bool   `json:"eligible_for_primary_claims"`
	DiscardReason string `json:"discard_reason,omitempty"`
	// CacheRef is the [cached:<id>] reference when the page body was stored.
	CacheRef string `json:"cache_ref,omitempty"`
}

// SourceKindSERP marks the preview row for the SERP itself. It is never
// eligible; consumers counting previews must skip this kind.
const SourceKindSERP = "search_results"

// GateStatus is the verdict on whether evidence suffices to synthesize.
type GateStatus struct {
	OK            bool     `json:"ok"`
	Reasons       []string `json:"reasons,omitempty"`
	EligibleCount int      `json:"eligible_count"`
	HostCount     int      `json:"host_count"`
	HasPrimary    bool     `json:"has_primary"`
}

// ExecutionStatus is the terminal state of one action.
type ExecutionStatus string

const (
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
	StatusDiscarded ExecutionStatus = "discarded"
)

// ActionResult is the outcome of one executed action.
type ActionResult struct {
	Action       PlannedAction   `json:"action"`
	Status       ExecutionStatus `json:"status"`
	Previews     []SourcePreview `json:"previews,omitempty"`
	Evidence     []SourcePreview `json:"evidence,omitempty"`
	VisitedLinks []string        `json:"visited_links,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// ExecutionSummary is what an execution returns, complete or partial.
type ExecutionSummary struct {
	Results         []ActionResult  `json:"results"`
	Gate            GateStatus      `json:"gate_status"`
	MissingCriteria []string        `json:"missing_criteria,omitempty"`
	Sources         []SourcePreview `json:"sources"`
	FollowUpRounds  int             `json:"follow_up_rounds"`
	Elapsed         time.Duration   `json:"elapsed"`
	Cancelled       bool            `json:"cancelled,omitempty"`
}
