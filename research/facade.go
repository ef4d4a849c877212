package research

import "context"

// Service is the public entry point a host program talks
// to: one-shot, streaming, and interactive research runs, all backed by
// the same Orchestrator.
type Service struct {
	orchestrator *Orchestrator
}

// NewService wraps orchestrator as a Service.
func NewService(orchestrator *Orchestrator) *Service {
	return &Service{orchestrator: orchestrator}
}

// Research runs req to completion and returns the final Result.
func (s *Service) Research(ctx context.Context, req Request) (*Result, error) {
	return s.orchestrator.Execute(ctx, req)
}

// ResearchStream runs req and streams Progress events as they occur.
func (s *Service) ResearchStream(ctx context.Context, req Request) <-chan Progress {
	return s.orchestrator.ExecuteStream(ctx, req)
}

// StartInteractive begins a resumable, caller-paced session.
func (s *Service) StartInteractive(req Request) *Session {
	return s.orchestrator.StartInteractive(req)
}

// Resume looks up a previously started interactive session.
func (s *Service) Resume(sessionID string) (*Session, bool) {
	return s.orchestrator.Resume(sessionID)
}
