package snapshots

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votestream/backend/internal/models"
)

// Repository records where each round's final leaderboard is stored.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a leaderboard snapshot repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores s unless the round already has a snapshot. It reports whether a row was written.
func (r *Repository) Insert(ctx context.Context, s *models.LeaderboardSnapshot) (bool, error) {
	const q = `INSERT INTO leaderboard_snapshots (round_id, session_name, s3_key, total_ideas, total_votes, unique_voters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (round_id) DO NOTHING
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, q, s.RoundID, s.SessionName, s.S3Key, s.TotalIdeas, s.TotalVotes, s.UniqueVoters).
		Scan(&s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, models.Unavailable("insert leaderboard snapshot", err)
	}
	return true, nil
}

// GetByRound returns the snapshot of a round or models.ErrNotFound.
func (r *Repository) GetByRound(ctx context.Context, roundID uuid.UUID) (*models.LeaderboardSnapshot, error) {
	const q = `SELECT round_id, session_name, s3_key, total_ideas, total_votes, unique_voters, created_at
		FROM leaderboard_snapshots WHERE round_id = $1`
	var s models.LeaderboardSnapshot
	err := r.pool.QueryRow(ctx, q, roundID).
		Scan(&s.RoundID, &s.SessionName, &s.S3Key, &s.TotalIdeas, &s.TotalVotes, &s.UniqueVoters, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.Unavailable("get leaderboard snapshot", err)
	}
	return &s, nil
}
