package research

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/tangerg/deepresearch/agent/analysis"
	"github.com/tangerg/deepresearch/agent/coordinator"
	"github.com/tangerg/deepresearch/agent/enrichment"
	"github.com/tangerg/deepresearch/agent/planner"
	"github.com/tangerg/deepresearch/agent/report"
)

// depthDefaults sizes per-run knobs (max sources per iteration, max
// expanded queries, sufficiency threshold) from the request's Depth,
// following the same thoroughness-tiering a retrieval pipeline applies
// to its own breadth knob.
func depthDefaults(d Depth) (maxQueries int, maxSourcesPerIter int, threshold float64) {
	switch d {
	case DepthQuick:
		return 4, 5, 0.6
	case DepthDeep:
		return 15, 15, 0.85
	default:
		return 8, 10, 0.75
	}
}

// Orchestrator drives the Plan -> Search -> Extract -> Analyze -> Evaluate
// state machine to a finished, cited Result.
type Orchestrator struct {
	planner     *planner.Planner
	coordinator *coordinator.Coordinator
	enricher    *enrichment.Enricher
	analyzer    *analysis.Analyzer
	reporter    *report.Generator
	sessions    *sessionStore
}

// New wires an Orchestrator from its five agents.
func New(p *planner.Planner, c *coordinator.Coordinator, e *enrichment.Enricher, a *analysis.Analyzer, r *report.Generator) *Orchestrator {
	return &Orchestrator{planner: p, coordinator: c, enricher: e, analyzer: a, reporter: r, sessions: newSessionStore()}
}

// Execute runs a research request to completion and returns the final
// Result. Mid-run failures are recorded in State.Errors and surfaced via
// ResultMetadata; the returned error is always nil, and the request is
// not validated.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	state := NewState(req)
	o.run(ctx, state, nil)
	return o.finalize(state), nil
}

// ExecuteStream runs a research request and emits Progress events on the
// returned channel as each phase is entered and at each milestone (plan
// generated, search completed, analysis completed), then one final
// Completed or Failed event; the channel is closed after that event.
func (o *Orchestrator) ExecuteStream(ctx context.Context, req Request) <-chan Progress {
	state := NewState(req)
	ch := make(chan Progress, 16)
	go func() {
		defer close(ch)
		o.run(ctx, state, func(p Progress) {
			select {
			case ch <- p:
			case <-ctx.Done():
			}
		})
		result := o.finalize(state)
		if state.Phase == PhaseFailed {
			ch <- Progress{Kind: ProgressFailed, Phase: state.Phase, Iteration: state.CurrentIteration, Timestamp: time.Now()}
			return
		}
		ch <- Progress{Kind: ProgressCompleted, Phase: state.Phase, Iteration: state.CurrentIteration, Timestamp: time.Now(), Result: result}
	}()
	return ch
}

// StartInteractive creates a Session paused at the start of its first
// iteration; the caller drives it forward with Session.Continue.
func (o *Orchestrator) StartInteractive(req Request) *Session {
	state := NewState(req)
	s := newSession(o, state)
	o.sessions.put(s)
	return s
}

// Resume looks up a previously started interactive session by id.
func (o *Orchestrator) Resume(sessionID string) (*Session, bool) {
	return o.sessions.get(sessionID)
}

// run drives the iteration loop to completion in place on state, invoking
// emit (if non-nil) after every phase transition.
func (o *Orchestrator) run(ctx context.Context, state *State, emit func(Progress)) {
	for {
		if ctx.Err() != nil {
			state.Fail(ctx.Err())
			return
		}
		if state.Phase.IsTerminal() {
			return
		}
		done := o.runOneStep(ctx, state, emit, nil)
		if done {
			return
		}
	}
}

// runOneStep advances state by exactly one Plan->Evaluate iteration, or
// straight into report generation if the iteration/budget limit has
// already been reached. extraQueries are spliced into this iteration's
// query list verbatim (used by interactive sessions to steer a run).
// Returns true once state has reached a terminal phase.
func (o *Orchestrator) runOneStep(ctx context.Context, state *State, emit func(Progress), extraQueries []string) bool {
	maxQueries, maxSources, threshold := depthDefaults(state.Request.Depth)
	if state.Request.MaxSourcesPerIter > 0 {
		maxSources = state.Request.MaxSourcesPerIter
	}

	notify := func(kind ProgressKind) {
		if emit != nil {
			emit(newProgress(kind, state.Phase, state.CurrentIteration))
		}
	}

	if state.BudgetExceeded() {
		slog.Info("research: budget exceeded, moving to report generation", "session", state.SessionID)
		o.finishReport(ctx, state)
		return true
	}
	if state.CurrentIteration >= state.Request.MaxIterations {
		o.finishReport(ctx, state)
		return true
	}

	state.AdvanceIteration()

	var priorGaps []string
	for _, g := range state.Gaps {
		if g.FollowUpQuery != "" {
			priorGaps = append(priorGaps, g.FollowUpQuery)
		}
	}

	if err := state.Transition(PhasePlanning); err != nil {
		state.Fail(err)
		return true
	}
	notify(ProgressPhaseEntered)
	plan := o.planner.Plan(ctx, state.Request.Query, planner.Options{
		Language:           state.Request.Language,
		MaxExpandedQueries: maxQueries,
		PriorGaps:          priorGaps,
	})
	for _, q := range extraQueries {
		plan.Queries = append(plan.Queries, planner.ExpandedQuery{Text: q, Intent: "user_directed", Priority: 1})
	}
	state.Think("planned " + strconv.Itoa(len(plan.Queries)) + " search queries")
	for _, pv := range plan.Perspectives {
		state.ExploredAngles = append(state.ExploredAngles, Angle{Name: pv.Name, Description: pv.Description, KeyTopics: pv.KeyTopics})
	}
	notify(ProgressPlanGenerated)

	if err := state.Transition(PhaseSearching); err != nil {
		state.Fail(err)
		return true
	}
	notify(ProgressPhaseEntered)
	outcome := o.coordinator.Coordinate(ctx, plan.Queries, coordinator.Options{})
	for _, q := range outcome.Queries {
		state.AddExecutedQuery(q)
	}
	for _, r := range outcome.Raw {
		state.AddRawResult(r)
	}
	for _, err := range outcome.Errors {
		state.RecordError(err)
	}
	notify(ProgressSearchCompleted)

	if err := state.Transition(PhaseContentExtraction); err != nil {
		state.Fail(err)
		return true
	}
	notify(ProgressPhaseEntered)
	sourcesToEnrich := outcome.Sources
	if len(sourcesToEnrich) > maxSources {
		sourcesToEnrich = sourcesToEnrich[:maxSources]
	}
	enrichOutcome := enrichment.Enrich(ctx, o.enricher, sourcesToEnrich, state.HasSource, enrichment.Options{})
	newSources := 0
	for _, doc := range enrichOutcome.Documents {
		if state.AddSource(doc) {
			newSources++
		}
	}
	for _, f := range enrichOutcome.Failures {
		state.RecordError(&extractFailureError{f.URL, string(f.Kind), f.Message})
	}

	if err := state.Transition(PhaseAnalysis); err != nil {
		state.Fail(err)
		return true
	}
	notify(ProgressPhaseEntered)
	var freshFindings []Finding
	for i := len(state.CollectedSources) - newSources; i < len(state.CollectedSources); i++ {
		if i < 0 {
			continue
		}
		doc := state.CollectedSources[i]
		for _, chunk := range doc.Chunks {
			found := o.analyzer.ExtractFindings(ctx, state.Request.Query, doc.ID, chunk.Text, analysis.Options{Language: state.Request.Language})
			freshFindings = append(freshFindings, found...)
		}
	}
	for _, f := range analysis.Dedupe(freshFindings) {
		f.IterationDiscovered = state.CurrentIteration
		if err := state.AddFinding(f); err != nil {
			state.RecordError(err)
		}
	}
	gaps := o.analyzer.IdentifyGaps(ctx, state.Request.Query, state.Findings, analysis.Options{Language: state.Request.Language})
	for _, g := range gaps {
		state.AddGap(g)
	}
	notify(ProgressAnalysisCompleted)

	if err := state.Transition(PhaseSufficiencyEvaluation); err != nil {
		state.Fail(err)
		return true
	}
	notify(ProgressPhaseEntered)
	score := o.analyzer.EvaluateSufficiency(ctx, state.Request.Query, state.Findings, len(state.CollectedSources), len(freshFindings), analysis.Options{SufficiencyThreshold: threshold})
	state.SetScore(score)

	if score.IsSufficient(threshold) {
		o.finishReport(ctx, state)
		return true
	}
	return false
}

// finishReport transitions state through report generation to Completed.
func (o *Orchestrator) finishReport(ctx context.Context, state *State) {
	if err := state.Transition(PhaseReportGeneration); err != nil {
		state.Fail(err)
		return
	}

	outline := o.reporter.PlanOutline(ctx, state.Request.Query, state.Findings)
	state.Outline = outline
	sections := o.reporter.GenerateSections(ctx, state.Request.Query, outline, state.Findings, report.Options{
		Language: state.Request.Language, Format: state.Request.OutputFormat,
	})
	state.Sections = sections

	if err := state.Transition(PhaseCompleted); err != nil {
		state.Fail(err)
	}
}

func (o *Orchestrator) finalize(state *State) *Result {
	snapshot := state.Snapshot()

	// A run that failed before report generation has no outline to assemble.
	var body string
	var cited []SourceDocument
	if snapshot.Outline != nil {
		body, cited = report.Assemble(snapshot.Outline, snapshot.Sections, func(id string) (SourceDocument, bool) {
			return state.SourceByID(id)
		})
	}

	citedIDs := make(map[string]bool, len(cited))
	for _, doc := range cited {
		citedIDs[doc.ID] = true
	}
	var uncited []SourceDocument
	for _, doc := range snapshot.CollectedSources {
		if !citedIDs[doc.ID] {
			uncited = append(uncited, doc)
		}
	}

	return &Result{
		SessionID:      snapshot.SessionID,
		Query:          snapshot.Request.Query,
		Report:         body,
		Outline:        snapshot.Outline,
		Sections:       snapshot.Sections,
		CitedSources:   cited,
		UncitedSources: uncited,
		Findings:       snapshot.Findings,
		Metadata: ResultMetadata{
			IterationCount: snapshot.CurrentIteration,
			TokenUsage:     snapshot.TokenUsage,
			Cost:           snapshot.Cost,
			Errors:         snapshot.Errors,
			DurationMs:     time.Since(snapshot.StartedAt).Milliseconds(),
		},
	}
}

type extractFailureError struct {
	url     string
	kind    string
	message string
}

func (e *extractFailureError) Error() string {
	return "extract " + e.url + " (" + e.kind + "): " + e.message
}
