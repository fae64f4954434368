package sessions

import (
	"context"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// Precondition guards a session transition at the store. The stored phase must be one
// of Phases and, when RoundID is set, the stored round must match it.
type Precondition struct {
	Phases  []models.Phase
	RoundID uuid.UUID
}

// Allows reports whether s satisfies the precondition.
func (p Precondition) Allows(s models.VotingSession) bool {
	if p.RoundID != uuid.Nil && s.ID != p.RoundID {
		return false
	}
	for _, ph := range p.Phases {
		if s.Phase == ph {
			return true
		}
	}
	return false
}

// Store is the shared, authoritative session record.
type Store interface {
	// Load returns the record for name, or an idle session if none exists yet.
	Load(ctx context.Context, name string) (models.VotingSession, error)
	// Transition writes next if the stored record satisfies pre, returning the stored
	// result. It fails with models.ErrInvalidState otherwise.
	Transition(ctx context.Context, next models.VotingSession, pre Precondition) (models.VotingSession, error)
	// UpdateRemaining lowers the countdown of an active round. It reports false when the
	// round is gone or the stored value is already at or below remaining.
	UpdateRemaining(ctx context.Context, name string, roundID uuid.UUID, remaining int) (bool, error)
}

// Notifier publishes change events to every instance and connected participant.
type Notifier interface {
	Publish(event string, payload interface{})
}

// EventSessionChanged carries a full models.VotingSession snapshot.
const EventSessionChanged = "session_changed"
