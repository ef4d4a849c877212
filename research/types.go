// Package research implements the orchestrator and its state machine:
// ResearchRequest in, ResearchResult out, driving Plan -> Search ->
// Extract -> Analyze -> Evaluate cycles until the evidence is sufficient
// or the iteration budget runs out, then generating a cited report.
package research

import (
	"github.com/tangerg/deepresearch/research/model"
)

// Depth controls how thorough a research run should be; the orchestrator
// uses it to size per-run defaults (max expanded queries, max sources per
// iteration, sufficiency threshold).
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// OutputFormat selects how the final report is rendered.
type OutputFormat = model.OutputFormat

const (
	FormatMarkdown   = model.FormatMarkdown
	FormatPlain      = model.FormatPlain
	FormatStructured = model.FormatStructured
)

// Request is the immutable input to a research run.
type Request struct {
	Query               string
	Depth               Depth
	MaxIterations       int // 0 means zero iterations (report from zero sources); negative defaults to 5
	Language            string
	OutputFormat        OutputFormat
	SearchProvider      string  // optional override
	MaxSourcesPerIter   int     // optional per-iteration source cap
	MaxBudget           float64 // optional monetary cutoff, 0 = unlimited
}

func (r Request) withDefaults() Request {
	if r.MaxIterations < 0 {
		r.MaxIterations = 5
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if r.OutputFormat == "" {
		r.OutputFormat = FormatMarkdown
	}
	return r
}

// Phase is a state in the orchestrator's state machine.
type Phase string

const (
	PhasePlanning              Phase = "planning"
	PhaseSearching             Phase = "searching"
	PhaseContentExtraction     Phase = "content_extraction"
	PhaseAnalysis              Phase = "analysis"
	PhaseSufficiencyEvaluation Phase = "sufficiency_evaluation"
	PhaseReportGeneration      Phase = "report_generation"
	PhaseCompleted             Phase = "completed"
	PhaseFailed                Phase = "failed"
)

// IsTerminal reports whether p is Completed or Failed — no further phase
// transitions are valid from a terminal phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// GapPriority ranks an InformationGap's urgency.
type GapPriority = model.GapPriority

const (
	PriorityLow    = model.PriorityLow
	PriorityMedium = model.PriorityMedium
	PriorityHigh   = model.PriorityHigh
)

// ParsePriority maps a free-text priority (case-insensitive) to
// GapPriority, defaulting unknown strings to Medium.
func ParsePriority(s string) GapPriority {
	return model.ParsePriority(s)
}

// SourceDocument is a deduplicated piece of collected evidence, keyed by
// canonical URL.
type SourceDocument = model.SourceDocument

// Chunk mirrors chunk.Chunk without importing that package's token
// counter dependency into the state model.
type Chunk = model.Chunk

// Finding is a single factual claim extracted from a source.
type Finding = model.Finding

// InformationGap is a missing piece of information identified during
// analysis, with a concrete suggested follow-up query.
type InformationGap = model.InformationGap

// SufficiencyScore is the analysis agent's judgment of whether collected
// evidence sufficiently answers the original query.
type SufficiencyScore = model.SufficiencyScore

// ReportSection is one generated section of the final report.
type ReportSection = model.ReportSection

// Citation links rendered text back to a source, before renumbering.
type Citation = model.Citation

// Outline is the report generator's planned structure.
type Outline = model.Outline

// OutlineSection is one planned (not yet synthesized) section.
type OutlineSection = model.OutlineSection

// Result is the finalized output of a completed research run.
type Result struct {
	SessionID       string
	Query           string
	Report          string
	Outline         *Outline
	Sections        []ReportSection
	CitedSources    []SourceDocument
	UncitedSources  []SourceDocument
	Findings        []Finding
	Metadata        ResultMetadata
}

// ResultMetadata carries bookkeeping surfaced to the caller alongside the
// report body.
type ResultMetadata struct {
	IterationCount int
	TokenUsage     int
	Cost           float64
	Errors         []string
	DurationMs     int64
}

// Angle is an explored research perspective, tracked so later iterations
// can see what's already been covered.
type Angle = model.Angle
