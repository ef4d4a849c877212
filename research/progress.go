package research

import "time"

// ProgressKind discriminates the intra- and inter-phase events the
// orchestrator emits while streaming.
type ProgressKind string

const (
	ProgressPhaseEntered    ProgressKind = "phase_entered"
	ProgressPlanGenerated   ProgressKind = "plan_generated"
	ProgressSearchCompleted ProgressKind = "search_completed"
	ProgressAnalysisCompleted ProgressKind = "analysis_completed"
	ProgressReportSection   ProgressKind = "report_section"
	ProgressCompleted       ProgressKind = "completed"
	ProgressFailed          ProgressKind = "failed"
)

// Progress is one event in a streamed research run. Only the fields
// relevant to Kind are populated; the rest are zero.
type Progress struct {
	Kind      ProgressKind
	Phase     Phase
	Iteration int
	Timestamp time.Time

	Message  string
	Provider string // ProgressSearchCompleted
	Section  string // ProgressReportSection

	Result *Result // ProgressCompleted only
	Err    error    // ProgressFailed only
}

func newProgress(kind ProgressKind, phase Phase, iteration int) Progress {
	return Progress{Kind: kind, Phase: phase, Iteration: iteration, Timestamp: time.Now()}
}
