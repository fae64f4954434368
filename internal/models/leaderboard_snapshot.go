package models

import (
	"time"

	"github.com/google/uuid"
)

// LeaderboardSnapshot records the final ranking of a round stored in S3.
type LeaderboardSnapshot struct {
	RoundID      uuid.UUID `json:"round_id"`
	SessionName  string    `json:"session_name"`
	S3Key        string    `json:"s3_key"`
	TotalIdeas   int       `json:"total_ideas"`
	TotalVotes   int       `json:"total_votes"`
	UniqueVoters int       `json:"unique_voters"`
	CreatedAt    time.Time `json:"created_at"`
}
