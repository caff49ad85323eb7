// Package models holds the funnel's in-memory session state: which wizard
// steps have run, what the backend returned, and the user's editable goal
// sheet.
package models

import (
	"sync"

	"careergate/internal/upstream"
)

// Step names one wizard stage.
type Step string

const (
	StepAnalyze     Step = "analyze"
	StepPersonalize Step = "personalize"
	StepTicket      Step = "ticket"
	StepCheckout    Step = "checkout"
)

// StepState is the lifecycle of a single step within a session.
type StepState string

const (
	StateIdle      StepState = "idle"
	StateInFlight  StepState = "in_flight"
	StateSucceeded StepState = "succeeded"
	StateFailed    StepState = "failed"
)

// Session is the per-client funnel state. All access goes through methods
// holding the session mutex; steps of the same session may be driven from
// concurrent requests.
type Session struct {
	id string

	mu                sync.Mutex
	steps             map[Step]StepState
	resumeAnalysisID  string
	personalizationID string
	analysis          *upstream.AnalysisResult
	ticket            *upstream.Ticket
	goals             FinalizedGoals
	completed         bool
}

func NewSession(id string) *Session {
	return &Session{
		id:    id,
		steps: make(map[Step]StepState),
	}
}

func (s *Session) ID() string { return s.id }

// Begin transitions step to in-flight. It reports false when the step is
// already in flight, which callers must treat as a duplicate invocation and
// reject without side effects. Re-running a finished step is allowed.
func (s *Session) Begin(step Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps[step] == StateInFlight {
		return false
	}
	s.steps[step] = StateInFlight
	return true
}

// Finish records the step outcome and releases the in-flight guard.
func (s *Session) Finish(step Step, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if succeeded {
		s.steps[step] = StateSucceeded
	} else {
		s.steps[step] = StateFailed
	}
}

// State returns the current lifecycle state of step.
func (s *Session) State(step Step) StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.steps[step]; ok {
		return state
	}
	return StateIdle
}

// SetAnalysis stores a fresh analysis, replacing any previous one.
func (s *Session) SetAnalysis(analysisID string, result *upstream.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeAnalysisID = analysisID
	s.analysis = result
}

// Analysis returns the last analysis id and result, if any.
func (s *Session) Analysis() (string, *upstream.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeAnalysisID, s.analysis
}

// SetPersonalizationID stores the id of the created personalization record.
func (s *Session) SetPersonalizationID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personalizationID = id
}

// StepIDs returns the resume analysis and personalization ids; either may be
// empty.
func (s *Session) StepIDs() (analysisID, personalizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeAnalysisID, s.personalizationID
}

// ApplyTicket overwrites the session's ticket and re-seeds untouched goal
// fields from the ticket's client info.
func (s *Session) ApplyTicket(ticket *upstream.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket = ticket
	if ticket != nil {
		s.goals.SeedFromClientInfo(ticket.ClientInfo)
	}
}

// Ticket returns the last generated ticket, or nil.
func (s *Session) Ticket() *upstream.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticket
}

// EditGoals runs fn against the goal sheet under the session lock.
func (s *Session) EditGoals(fn func(goals *FinalizedGoals)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.goals)
}

// GoalsPayload returns the wire shape of the current goals.
func (s *Session) GoalsPayload() upstream.GoalsPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goals.Payload()
}

// MarkCompleted flags the session as having reached checkout.
func (s *Session) MarkCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = true
}

// Completed reports whether checkout has succeeded for this session.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}
