package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a participant's role in the voting tool.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

// User represents a participant, identified by email.
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Participant is the minimal identity carried on a vote (caster or beneficiary).
type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// AsParticipant returns the user's id and display name.
func (u *User) AsParticipant() Participant {
	return Participant{ID: u.ID, Name: u.Name}
}
