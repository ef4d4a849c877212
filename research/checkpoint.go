package research

import (
	"fmt"
	"sort"
	"time"
)

// Checkpoint is a serializable snapshot of State taken at a phase
// boundary, sufficient to resume or to audit a run after the fact. It
// embeds convenience fields derived from State so a consumer doesn't
// need to re-run the same scans (top findings, top gap queries, a
// markdown summary).
type Checkpoint struct {
	SessionID       string    `json:"session_id"`
	CheckpointNumber int      `json:"checkpoint_number"`
	CreatedAt       time.Time `json:"created_at"`
	State           State     `json:"state"`

	TopFindings   []Finding `json:"top_findings"`
	TopGapQueries []string  `json:"top_gap_queries"`
	Summary       string    `json:"summary"`
}

// NewCheckpoint builds a Checkpoint from the current state, numbered
// sequentially by the caller (the orchestrator tracks the counter per
// session).
func NewCheckpoint(s *State, number int) *Checkpoint {
	snapshot := s.Snapshot()
	return &Checkpoint{
		SessionID:        snapshot.SessionID,
		CheckpointNumber: number,
		CreatedAt:        time.Now(),
		State:            snapshot,
		TopFindings:      topFindings(snapshot.Findings, 5),
		TopGapQueries:    topGapQueries(snapshot.Gaps, 5),
		Summary:          markdownSummary(snapshot),
	}
}

func topFindings(findings []Finding, n int) []Finding {
	sorted := append([]Finding(nil), findings...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].VerificationScore > sorted[j].VerificationScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func topGapQueries(gaps []InformationGap, n int) []string {
	sorted := append([]InformationGap(nil), gaps...)
	rank := func(p GapPriority) int {
		switch p {
		case PriorityHigh:
			return 0
		case PriorityMedium:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return rank(sorted[i].Priority) < rank(sorted[j].Priority) })
	queries := make([]string, 0, n)
	for _, g := range sorted {
		if len(queries) >= n {
			break
		}
		if g.FollowUpQuery != "" {
			queries = append(queries, g.FollowUpQuery)
		}
	}
	return queries
}

func markdownSummary(s State) string {
	return fmt.Sprintf("## Research checkpoint\n\n- Session: %s\n- Phase: %s\n- Iteration: %d\n- Sources collected: %d\n- Findings: %d\n- Gaps: %d\n",
		s.SessionID, s.Phase, s.CurrentIteration, len(s.CollectedSources), len(s.Findings), len(s.Gaps))
}
