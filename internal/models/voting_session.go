package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the stage of a voting round.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
	PhaseEnded  Phase = "ended"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseActive, PhaseEnded:
		return true
	}
	return false
}

// VotingSession is the shared session record. Name is the singleton record key;
// ID identifies the current round and changes on every start.
type VotingSession struct {
	Name                 string    `json:"name"`
	ID                   uuid.UUID `json:"id"`
	Phase                Phase     `json:"phase"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds"`
	TotalDurationSeconds int       `json:"total_duration_seconds"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewIdleSession returns the initial state for a session record.
func NewIdleSession(name string) VotingSession {
	return VotingSession{Name: name, Phase: PhaseIdle}
}

// IsActive reports whether votes may be cast.
func (s VotingSession) IsActive() bool { return s.Phase == PhaseActive }

// HasEnded reports whether the round has finished.
func (s VotingSession) HasEnded() bool { return s.Phase == PhaseEnded }

// Normalized returns s with its invariants enforced: remaining within [0, total],
// zero once ended. Unknown phases are treated as idle.
func (s VotingSession) Normalized() VotingSession {
	if !s.Phase.Valid() {
		s.Phase = PhaseIdle
	}
	if s.TotalDurationSeconds < 0 {
		s.TotalDurationSeconds = 0
	}
	if s.TimeRemainingSeconds < 0 {
		s.TimeRemainingSeconds = 0
	}
	if s.TimeRemainingSeconds > s.TotalDurationSeconds {
		s.TimeRemainingSeconds = s.TotalDurationSeconds
	}
	if s.Phase == PhaseEnded {
		s.TimeRemainingSeconds = 0
	}
	return s
}
