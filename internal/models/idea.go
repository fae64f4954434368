package models

import (
	"time"

	"github.com/google/uuid"
)

// Idea is a submitted proposal. Title, description and author never change after creation.
type Idea struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorID    uuid.UUID `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdeaDraft is the user-supplied part of an idea before validation.
type IdeaDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
