package leaderboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// PodiumSize is how many leading ideas are highlighted.
const PodiumSize = 3

// Board is the rendered leaderboard: the podium, the remaining entries and totals.
// It is served live over HTTP and stored as the final snapshot of a round.
type Board struct {
	SessionName string    `json:"session_name,omitempty"`
	RoundID     uuid.UUID `json:"round_id"`
	Summary     Summary   `json:"summary"`
	Podium      []Entry   `json:"podium"`
	Others      []Entry   `json:"others"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Build ranks ideas and assembles a Board for the given session round.
func Build(session models.VotingSession, ideas []models.Idea, votes []models.Vote, at time.Time) Board {
	top, rest := Podium(Rank(ideas, votes), PodiumSize)
	return Board{
		SessionName: session.Name,
		RoundID:     session.ID,
		Summary:     Summarize(ideas, votes),
		Podium:      top,
		Others:      rest,
		GeneratedAt: at.UTC(),
	}
}
