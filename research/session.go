package research

import (
	"context"
	"fmt"
	"sync"
)

// Session is a handle to an interactive, resumable research run: each
// call to Continue advances the state machine by exactly one
// Plan->Evaluate iteration (or straight to report generation, if this
// was the last allowed iteration) rather than running to completion in
// one call, so a caller can inspect or redirect progress between steps.
type Session struct {
	mu           sync.Mutex
	state        *State
	orchestrator *Orchestrator
	checkpointNo int
	addedQueries []string
}

// newSession wraps state under orchestrator's agents.
func newSession(orchestrator *Orchestrator, state *State) *Session {
	return &Session{orchestrator: orchestrator, state: state}
}

// IsComplete reports whether the session has reached a terminal phase.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase.IsTerminal()
}

// Checkpoint snapshots the session's current state.
func (s *Session) Checkpoint() *Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpointNo++
	return NewCheckpoint(s.state, s.checkpointNo)
}

// AddQuery injects an extra search query to be run during the next
// Continue call, alongside whatever the planner itself proposes —
// useful when a caller wants to steer an in-progress session.
func (s *Session) AddQuery(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addedQueries = append(s.addedQueries, text)
}

// Continue runs one iteration (or, if the iteration budget is already
// exhausted, the report-generation phase) and returns whether the
// session is now complete.
func (s *Session) Continue(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase.IsTerminal() {
		return true, fmt.Errorf("research: session %s is already in terminal phase %s", s.state.SessionID, s.state.Phase)
	}

	done := s.orchestrator.runOneStep(ctx, s.state, nil, s.addedQueries)
	s.addedQueries = nil
	return done, nil
}

// Finalize forces a session straight to its final Result, running
// report generation immediately regardless of remaining iteration
// budget or sufficiency.
func (s *Session) Finalize(ctx context.Context) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Phase.IsTerminal() {
		s.orchestrator.finishReport(ctx, s.state)
	}
	return s.orchestrator.finalize(s.state)
}

// SessionID returns the underlying state's session identifier.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SessionID
}

// sessionStore is an in-memory registry of interactive sessions, guarded
// by a single exclusive lock — the session count this process will ever
// hold concurrently is small enough that per-session lock striping isn't
// worth the complexity.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (r *sessionStore) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID()] = s
}

func (r *sessionStore) get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}
