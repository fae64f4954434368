package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote is a ledger entry. (IdeaID, TargetUserID) is unique across the ledger.
type Vote struct {
	ID             uuid.UUID `json:"id"`
	IdeaID         uuid.UUID `json:"idea_id"`
	VoterID        uuid.UUID `json:"voter_id"`
	VoterName      string    `json:"voter_name"`
	TargetUserID   uuid.UUID `json:"target_user_id"`
	TargetUserName string    `json:"target_user_name"`
	CreatedAt      time.Time `json:"created_at"`
}
