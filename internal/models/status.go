package models

// DocumentStatus is the lifecycle state of a resume or job description.
// Transitions are monotone: queued -> processing -> ready | error.
type DocumentStatus string

const (
	DocumentStatusQueued     DocumentStatus = "queued"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusError      DocumentStatus = "error"
)

// CanTransition reports whether moving from s to next follows the state
// machine. Backward transitions are never allowed.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case DocumentStatusQueued:
		return next == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return next == DocumentStatusReady || next == DocumentStatusError
	default:
		return false
	}
}

// MatchStatus is the lifecycle state of a match job.
// Transitions are monotone: queued -> running -> completed | failed.
type MatchStatus string

const (
	MatchStatusQueued    MatchStatus = "queued"
	MatchStatusRunning   MatchStatus = "running"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusFailed    MatchStatus = "failed"
)

// CanTransition reports whether moving from s to next follows the state machine.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	switch s {
	case MatchStatusQueued:
		return next == MatchStatusRunning
	case MatchStatusRunning:
		return next == MatchStatusCompleted || next == MatchStatusFailed
	default:
		return false
	}
}
