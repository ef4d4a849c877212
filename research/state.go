package research

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tangerg/deepresearch/search"
)

// State is the mutable, orchestrator-owned record of one research
// session. Unlike the rest of the pipeline's mostly-immutable value
// types, State is mutated in place across phases — phase-completion
// callbacks and progress events are how tests observe it, favoring
// mutable-in-place session state over an immutable-rebuild style.
type State struct {
	mu sync.Mutex

	SessionID  string
	Request    Request
	StartedAt  time.Time

	Phase           Phase
	CurrentIteration int

	ExecutedQueries  []*search.Query
	RawResults       []*search.Result
	CollectedSources []SourceDocument
	sourceByURL      map[string]int // canonical URL -> index in CollectedSources

	Findings []Finding
	Gaps     []InformationGap

	LatestScore     *SufficiencyScore
	ExploredAngles  []Angle

	Outline  *Outline
	Sections []ReportSection

	TokenUsage    int
	Cost          float64
	Errors        []string
	ThinkingSteps []string
}

// NewState creates a fresh session in phase Planning.
func NewState(req Request) *State {
	return &State{
		SessionID:   uuid.NewString(),
		Request:     req.withDefaults(),
		StartedAt:   time.Now(),
		Phase:       PhasePlanning,
		sourceByURL: make(map[string]int),
	}
}

// Transition moves the state machine to next, refusing any transition
// out of a terminal phase — Completed and Failed are sinks.
func (s *State) Transition(next Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase.IsTerminal() {
		return fmt.Errorf("research: cannot transition out of terminal phase %s", s.Phase)
	}
	s.Phase = next
	return nil
}

// Fail transitions to Failed and records err, regardless of current
// phase (as long as it isn't already terminal).
func (s *State) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Phase.IsTerminal() {
		return
	}
	s.Phase = PhaseFailed
	s.Errors = append(s.Errors, err.Error())
}

// RecordError appends a soft error without changing phase — expected
// partial failures (one provider down, some URLs unextractable, LLM
// fallback engaged) are recorded but never fail the run.
func (s *State) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, err.Error())
}

// Think appends a user-facing trace step.
func (s *State) Think(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ThinkingSteps = append(s.ThinkingSteps, step)
}

// AdvanceIteration increments CurrentIteration; it is monotonically
// non-decreasing by construction (only ever incremented).
func (s *State) AdvanceIteration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentIteration++
}

// AddExecutedQuery records a query as having been run this session.
func (s *State) AddExecutedQuery(q *search.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ExecutedQueries = append(s.ExecutedQueries, q)
}

// AddRawResult records a provider's SearchResult for this session.
func (s *State) AddRawResult(r *search.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RawResults = append(s.RawResults, r)
}

// AddSource appends doc to CollectedSources unless its canonical URL is
// already present, preserving the "unique canonical URL" invariant.
// Returns false if it was a duplicate (skipped).
func (s *State) AddSource(doc SourceDocument) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sourceByURL[doc.CanonicalURL]; exists {
		return false
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	s.sourceByURL[doc.CanonicalURL] = len(s.CollectedSources)
	s.CollectedSources = append(s.CollectedSources, doc)
	return true
}

// HasSource reports whether canonicalURL is already collected.
func (s *State) HasSource(canonicalURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sourceByURL[canonicalURL]
	return ok
}

// SourceByID returns the collected source with the given id, if any.
func (s *State) SourceByID(id string) (SourceDocument, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.CollectedSources {
		if doc.ID == id {
			return doc, true
		}
	}
	return SourceDocument{}, false
}

// AddFinding appends a finding discovered at the current iteration,
// enforcing the invariant that SourceID must reference a collected
// source. Returns an error (recorded as a soft error by the caller) if
// the reference is dangling.
func (s *State) AddFinding(f Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sourceByURL[f.SourceID]; !ok {
		found := false
		for _, doc := range s.CollectedSources {
			if doc.ID == f.SourceID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("research: finding references unknown source id %q", f.SourceID)
		}
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.DiscoveredAt.IsZero() {
		f.DiscoveredAt = time.Now()
	}
	s.Findings = append(s.Findings, f)
	return nil
}

// AddGap appends an identified information gap.
func (s *State) AddGap(g InformationGap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.IdentifiedAt.IsZero() {
		g.IdentifiedAt = time.Now()
	}
	s.Gaps = append(s.Gaps, g)
}

// SetScore records the most recent sufficiency evaluation.
func (s *State) SetScore(score SufficiencyScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LatestScore = &score
}

// AddCost accumulates monetary cost from an LLM call.
func (s *State) AddCost(usd float64, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cost += usd
	s.TokenUsage += tokens
}

// BudgetExceeded reports whether accumulated cost has reached the
// request's configured budget (0 means unlimited).
func (s *State) BudgetExceeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Request.MaxBudget > 0 && s.Cost >= s.Request.MaxBudget
}

// Snapshot returns a value copy of the fields needed to build a
// Checkpoint, taken under lock so concurrent mutation during a
// checkpoint doesn't tear the read.
func (s *State) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SessionID:        s.SessionID,
		Request:          s.Request,
		StartedAt:        s.StartedAt,
		Phase:            s.Phase,
		CurrentIteration: s.CurrentIteration,
		ExecutedQueries:  s.ExecutedQueries,
		RawResults:       s.RawResults,
		CollectedSources: s.CollectedSources,
		Findings:         s.Findings,
		Gaps:             s.Gaps,
		LatestScore:      s.LatestScore,
		ExploredAngles:   s.ExploredAngles,
		Outline:          s.Outline,
		Sections:         s.Sections,
		TokenUsage:       s.TokenUsage,
		Cost:             s.Cost,
		Errors:           s.Errors,
		ThinkingSteps:    s.ThinkingSteps,
	}
}
