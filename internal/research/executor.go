package research

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"clawdia/internal/browser"
	"clawdia/internal/pagecache"
	"clawdia/pkg/progress"

	"github.com/google/uuid"
)

// PagePool is the browser capability the executor consumes.
type PagePool interface {
	SearchGoogle(ctx context.Context, query string) ([]browser.SerpResult, error)
	FetchPageText(ctx context.Context, pageURL string) (string, error)
}

// PageStore is the persistent page cache the executor writes fetched bodies
// to. An unavailable store degrades to inline content.
type PageStore interface {
	Available() bool
	StorePage(pageURL, title, content string, meta pagecache.PageMeta) (string, error)
	Reference(id string) (string, error)
}

// Executor drives a task spec to completion: it runs planned actions,
// records sources, tracks per-criterion coverage, and evaluates the gate.
// One executor handles one execution at a time.
type Executor struct {
	pool  PagePool
	store PageStore
	sink  progress.Sink
}

// NewExecutor wires an executor. A nil store disables caching; a nil sink
// discards events.
func NewExecutor(pool PagePool, store PageStore, sink progress.Sink) *Executor {
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &Executor{pool: pool, store: store, sink: sink}
}

// Minimum extracted length for a source to feed synthesis.
const minEligibleChars = 500

const maxSnippetChars = 300
const maxURLsPerAction = 3

const discardTooCompact = "Content too compact"

// execState is the mutable state of one execution.
type execState struct {
	spec             TaskSpec
	coverageKeywords map[string][]string
	coverageHits     map[string]map[string]bool
	sourceMap        map[string]SourcePreview
	sourceOrder      []string
	fullText         map[string]string // source_id -> lower-cased extracted text
	followUpRound    int
	actionsRun       int
	results          []ActionResult
}

// Execute runs the task spec until its action queue drains or the budget
// expires. Cancellation returns a partial summary with whatever sources
// were already recorded.
func (e *Executor) Execute(ctx context.Context, spec TaskSpec) ExecutionSummary {
	start := time.Now()
	if spec.Budget.MaxActions <= 0 {
		spec.Budget = DefaultBudget()
	}
	if spec.Budget.MaxTimeSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(spec.Budget.MaxTimeSeconds)*time.Second)
		defer cancel()
	}

	st := &execState{
		spec:             spec,
		coverageKeywords: make(map[string][]string),
		coverageHits:     make(map[string]map[string]bool),
		sourceMap:        make(map[string]SourcePreview),
		fullText:         make(map[string]string),
	}
	for _, criterion := range spec.SuccessCriteria {
		st.coverageKeywords[criterion] = DeriveCriterionKeywords(spec.Domain, criterion)
		st.coverageHits[criterion] = make(map[string]bool)
	}

	queue := append([]PlannedAction(nil), spec.PlannedActions...)
	if len(queue) > spec.Budget.MaxActions {
		queue = queue[:spec.Budget.MaxActions]
	}

	e.emit(progress.Event{
		Phase:   progress.PhaseIntake,
		Message: fmt.Sprintf("Researching: %s", spec.UserGoal),
		Actions: wireActions(queue),
	})

	cancelled := false
	for len(queue) > 0 {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		action := queue[0]
		queue = queue[1:]

		result := e.executeAction(ctx, st, action)
		st.results = append(st.results, result)
		st.actionsRun++
		e.record(st, result)
		e.updateCoverage(st, result)

		gate := e.evaluateGate(st)
		e.emit(progress.Event{
			Phase:   progress.PhaseExecuting,
			Message: fmt.Sprintf("Searched: %s", action.Query),
			Sources: wireSources(st),
			Gate:    wireGate(gate),
		})

		if len(queue) == 0 && st.followUpRound == 0 {
			queue = e.planFollowUps(st, gate)
		}
	}

	gate := e.evaluateGate(st)
	missing := e.missingCriteria(st)
	e.emit(progress.Event{
		Phase:            progress.PhaseCheckpoint,
		Message:          checkpointMessage(gate, missing),
		Sources:          wireSources(st),
		Gate:             wireGate(gate),
		CheckpointNumber: 1,
	})
	e.emit(progress.Event{
		Phase:   progress.PhaseDone,
		Message: "Research complete",
	})

	return ExecutionSummary{
		Results:         st.results,
		Gate:            gate,
		MissingCriteria: missing,
		Sources:         orderedSources(st),
		FollowUpRounds:  st.followUpRound,
		Elapsed:         time.Since(start),
		Cancelled:       cancelled,
	}
}

// executeAction runs one search action end to end. Page pool failures are
// converted to a failed result; the execution continues.
func (e *Executor) executeAction(ctx context.Context, st *execState, action PlannedAction) ActionResult {
	serpURL := browser.GoogleSERPURL(action.Query)
	serpPreview := SourcePreview{
		SourceID:   uuid.NewString(),
		URL:        serpURL,
		Host:       "www.google.com",
		Title:      fmt.Sprintf("Search: %s", action.Query),
		SourceKind: SourceKindSERP,
		Tier:       TierD,
	}
	e.emit(progress.Event{
		Phase:           progress.PhaseExecuting,
		Message:         fmt.Sprintf("Searching: %s", action.Query),
		ActiveSourceID:  serpPreview.SourceID,
		ActiveSourceURL: serpURL,
	})

	result := ActionResult{
		Action:   action,
		Previews: []SourcePreview{serpPreview},
	}

	serpResults, err := e.pool.SearchGoogle(ctx, action.Query)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("search failed: %v", err)
		return result
	}
	if len(serpResults) == 0 {
		result.Status = StatusDiscarded
		result.Reason = "no results"
		return result
	}

	for i, sr := range serpResults {
		if i >= maxURLsPerAction {
			break
		}
		if !fetchableURL(sr.URL) {
			continue
		}
		result.VisitedLinks = append(result.VisitedLinks, sr.URL)

		preview := e.visitResult(ctx, st, sr)
		result.Previews = append(result.Previews, preview)
		if preview.SourceKind != SourceKindSERP {
			result.Evidence = append(result.Evidence, preview)
		}
	}

	if len(result.Evidence) == 0 {
		result.Status = StatusDiscarded
		result.Reason = "no fetchable results"
		return result
	}
	result.Status = StatusSucceeded
	return result
}

// visitResult fetches one SERP hit, classifies it, and caches its body.
func (e *Executor) visitResult(ctx context.Context, st *execState, sr browser.SerpResult) SourcePreview {
	sourceID := pagecache.PageID(sr.URL)
	class := ClassifyHost(sr.URL, st.spec.Domain)

	preview := SourcePreview{
		SourceID:   sourceID,
		URL:        sr.URL,
		Host:       hostname(sr.URL),
		Title:      sr.Title,
		SourceKind: class.Kind,
		Tier:       class.Tier,
		Primary:    class.Primary,
	}

	e.emit(progress.Event{
		Phase:           progress.PhaseExecuting,
		Message:         fmt.Sprintf("Reading: %s", preview.Host),
		ActiveSourceID:  sourceID,
		ActiveSourceURL: sr.URL,
	})

	text, err := e.pool.FetchPageText(ctx, sr.URL)
	if err != nil {
		preview.Snippet = snippetOf(sr.Snippet)
		preview.DiscardReason = fmt.Sprintf("fetch failed: %v", err)
		return preview
	}

	preview.Snippet = snippetOf(text)
	st.fullText[sourceID] = strings.ToLower(text)

	if len(text) >= minEligibleChars {
		preview.Eligible = true
	} else {
		preview.DiscardReason = discardTooCompact
	}

	if e.store != nil && e.store.Available() {
		id, err := e.store.StorePage(sr.URL, sr.Title, text, pagecache.PageMeta{
			Summary:     preview.Snippet,
			ContentType: "article",
		})
		if err != nil {
			log.Printf("[Research] WARNING: page cache write for %s failed: %v", sr.URL, err)
		} else if ref, err := e.store.Reference(id); err == nil {
			preview.CacheRef = ref
		}
	}
	return preview
}

// record merges an action's previews into the source map, deduped by id.
// The SERP preview row is never recorded as a source.
func (e *Executor) record(st *execState, result ActionResult) {
	for _, p := range result.Previews {
		if p.SourceKind == SourceKindSERP {
			continue
		}
		if _, ok := st.sourceMap[p.SourceID]; ok {
			continue
		}
		st.sourceMap[p.SourceID] = p
		st.sourceOrder = append(st.sourceOrder, p.SourceID)
	}
}

// updateCoverage grows each criterion's hit set with evidence whose
// extracted text contains at least min(2, |keywords|) of the criterion's
// derived keywords.
func (e *Executor) updateCoverage(st *execState, result ActionResult) {
	for _, ev := range result.Evidence {
		text, ok := st.fullText[ev.SourceID]
		if !ok {
			continue
		}
		for criterion, keywords := range st.coverageKeywords {
			needed := min(2, len(keywords))
			if needed == 0 {
				continue
			}
			hits := 0
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					hits++
					if hits >= needed {
						break
					}
				}
			}
			if hits >= needed {
				st.coverageHits[criterion][ev.SourceID] = true
			}
		}
	}
}

// missingCriteria lists criteria with empty hit sets, in spec order.
func (e *Executor) missingCriteria(st *execState) []string {
	var missing []string
	for _, criterion := range st.spec.SuccessCriteria {
		if len(st.coverageHits[criterion]) == 0 {
			missing = append(missing, criterion)
		}
	}
	return missing
}

// evaluateGate applies the evidence-sufficiency contract over the
// synthesis-eligible sources only.
func (e *Executor) evaluateGate(st *execState) GateStatus {
	hosts := make(map[string]bool)
	gate := GateStatus{}
	for _, id := range st.sourceOrder {
		p := st.sourceMap[id]
		if !p.Eligible {
			continue
		}
		gate.EligibleCount++
		hosts[p.Host] = true
		if p.Primary {
			gate.HasPrimary = true
		}
	}
	gate.HostCount = len(hosts)

	if gate.EligibleCount < 2 {
		gate.Reasons = append(gate.Reasons, "Need at least two eligible sources")
	}
	if gate.HostCount < 2 {
		gate.Reasons = append(gate.Reasons, "Need at least two hosts")
	}
	gate.OK = gate.EligibleCount >= 2 && gate.HostCount >= 2
	return gate
}

// planFollowUps builds the single permitted follow-up round when coverage
// or the gate signals a shortfall and budget remains.
func (e *Executor) planFollowUps(st *execState, gate GateStatus) []PlannedAction {
	missing := e.missingCriteria(st)
	if len(missing) == 0 && gate.OK {
		return nil
	}
	if st.spec.Budget.MaxBatches <= 1 {
		return nil
	}
	remaining := st.spec.Budget.MaxActions - st.actionsRun
	if remaining <= 0 {
		return nil
	}

	criteria := missing
	if len(criteria) == 0 {
		// Gate failed with full coverage; re-target every criterion.
		criteria = st.spec.SuccessCriteria
	}
	queries := BuildFollowUpQueries(st.spec.Domain, criteria, e.eligibleHosts(st), min(2, remaining))
	if len(queries) == 0 {
		return nil
	}

	st.followUpRound = 1
	actions := make([]PlannedAction, 0, len(queries))
	for _, q := range queries {
		actions = append(actions, newAction(q, 1, "follow-up for missing coverage"))
	}
	log.Printf("[Research] follow-up round: %d queries for %d missing criteria", len(actions), len(missing))
	return actions
}

// eligibleHosts returns the distinct hosts backing eligible sources, in
// first-seen order.
func (e *Executor) eligibleHosts(st *execState) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, id := range st.sourceOrder {
		p := st.sourceMap[id]
		if !p.Eligible || seen[p.Host] {
			continue
		}
		seen[p.Host] = true
		hosts = append(hosts, p.Host)
	}
	return hosts
}

func (e *Executor) emit(ev progress.Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now()
	e.sink.Emit(ev)
}

// snippetOf collapses whitespace and cuts to the snippet bound on a rune
// boundary.
func snippetOf(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if len(collapsed) <= maxSnippetChars {
		return collapsed
	}
	cut := maxSnippetChars
	for cut > 0 && !utf8.RuneStart(collapsed[cut]) {
		cut--
	}
	return collapsed[:cut] + "…"
}

// fetchableURL accepts only absolute HTTP(S) URLs for page fetches.
func fetchableURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func hostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func orderedSources(st *execState) []SourcePreview {
	sources := make([]SourcePreview, 0, len(st.sourceOrder))
	for _, id := range st.sourceOrder {
		sources = append(sources, st.sourceMap[id])
	}
	return sources
}

func wireActions(actions []PlannedAction) []progress.Action {
	out := make([]progress.Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, progress.Action{
			ID:       a.ID,
			Type:     a.Type,
			Source:   a.Source,
			Query:    a.Query,
			Priority: a.Priority,
			Reason:   a.Reason,
		})
	}
	return out
}

func wireSources(st *execState) []progress.Source {
	out := make([]progress.Source, 0, len(st.sourceOrder))
	for _, id := range st.sourceOrder {
		p := st.sourceMap[id]
		out = append(out, progress.Source{
			ID:            p.SourceID,
			URL:           p.URL,
			Host:          p.Host,
			Title:         p.Title,
			Snippet:       p.Snippet,
			Kind:          p.SourceKind,
			Tier:          string(p.Tier),
			Eligible:      p.Eligible,
			Primary:       p.Primary,
			DiscardReason: p.DiscardReason,
			CacheRef:      p.CacheRef,
		})
	}
	return out
}

func wireGate(g GateStatus) *progress.Gate {
	return &progress.Gate{
		OK:            g.OK,
		Reasons:       g.Reasons,
		EligibleCount: g.EligibleCount,
		HostCount:     g.HostCount,
		HasPrimary:    g.HasPrimary,
	}
}

func checkpointMessage(gate GateStatus, missing []string) string {
	if gate.OK && len(missing) == 0 {
		return "Evidence sufficient; ready to synthesize"
	}
	parts := append([]string(nil), gate.Reasons...)
	for _, m := range missing {
		parts = append(parts, fmt.Sprintf("no coverage for %q", m))
	}
	return "Coverage shortfall: " + strings.Join(parts, "; ")
}
