// Package model holds the research pipeline's shared value types —
// collected sources, extracted findings, information gaps, sufficiency
// scores, and report structure — so both the orchestrator (package
// research) and the agents it drives (package agent/...) can depend on
// them without the agents needing to import the orchestrator itself.
package model

import "time"

// SourceDocument is a deduplicated piece of collected evidence, keyed by
// canonical URL.
type SourceDocument struct {
	ID             string
	CanonicalURL   string
	Title          string
	Text           string
	Author         string
	PublishedDate  *time.Time
	ExtractedAt    time.Time
	ProviderID     string
	RelevanceScore float64
	TrustScore     float64
	Chunks         []Chunk
}

// Chunk mirrors chunk.Chunk without importing that package's token
// counter dependency into the shared model.
type Chunk struct {
	Index      int
	Total      int
	Text       string
	TokenCount int
	StartPos   int
	EndPos     int
}

// Finding is a single factual claim extracted from a source.
type Finding struct {
	ID                  string
	Claim               string
	SourceID            string
	EvidenceQuote       string
	VerificationScore   float64
	Verified            bool
	IterationDiscovered int
	DiscoveredAt        time.Time
}

// GapPriority ranks an InformationGap's urgency.
type GapPriority string

const (
	PriorityLow    GapPriority = "low"
	PriorityMedium GapPriority = "medium"
	PriorityHigh   GapPriority = "high"
)

// ParsePriority maps a free-text priority (case-insensitive) to
// GapPriority, defaulting unknown strings to Medium.
func ParsePriority(s string) GapPriority {
	switch normalizePriority(s) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func normalizePriority(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

// InformationGap is a missing piece of information identified during
// analysis, with a concrete suggested follow-up query.
type InformationGap struct {
	Description   string
	Priority      GapPriority
	FollowUpQuery string
	IdentifiedAt  time.Time
}

// SufficiencyScore is the analysis agent's judgment of whether collected
// evidence sufficiently answers the original query.
type SufficiencyScore struct {
	Overall         float64
	Coverage        float64
	SourceDiversity float64
	Quality         float64
	Freshness       *float64 // optional; no populating component => nil
	NewFindings     int
	EvaluatedAt     time.Time
}

// IsSufficient reports whether Overall meets threshold.
func (s SufficiencyScore) IsSufficient(threshold float64) bool {
	return s.Overall >= threshold
}

// ReportSection is one generated section of the final report.
type ReportSection struct {
	Title     string
	Purpose   string
	KeyPoints []string
	Body      string
	Citations []Citation
}

// Citation links rendered text back to a source, before renumbering.
type Citation struct {
	SourceID string
	Quote    string
}

// Outline is the report generator's planned structure.
type Outline struct {
	Title    string
	Sections []OutlineSection
}

// OutlineSection is one planned (not yet synthesized) section.
type OutlineSection struct {
	Title     string
	Purpose   string
	KeyPoints []string
}

// Angle is an explored research perspective, tracked so later iterations
// can see what's already been covered.
type Angle struct {
	Name        string
	Description string
	KeyTopics   []string
}

// OutputFormat selects how the final report is rendered.
type OutputFormat string

const (
	FormatMarkdown   OutputFormat = "markdown"
	FormatPlain      OutputFormat = "plain"
	FormatStructured OutputFormat = "structured"
)
