package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// DefaultSearchLimit caps participant search results when the caller gives no limit.
const DefaultSearchLimit = 10

// Store persists participants.
type Store interface {
	// Upsert creates the user or refreshes name and department of the user with the
	// same email. ID, Role and CreatedAt are filled from the stored row.
	Upsert(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// Search matches query case-insensitively against name or email, excluding one
	// user, ordered by name.
	Search(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.User, error)
}
