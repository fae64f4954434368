package votes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votestream/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository is the PostgreSQL ledger. UNIQUE (idea_id, target_user_id) is the
// only enforcement point for one vote per beneficiary per idea.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a votes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records a vote, mapping a uniqueness violation to ErrDuplicateVote.
func (r *Repository) Insert(ctx context.Context, v *models.Vote) error {
	const q = `INSERT INTO votes (id, idea_id, voter_id, voter_name, target_user_id, target_user_name)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, v.IdeaID, v.VoterID, v.VoterName, v.TargetUserID, v.TargetUserName).
		Scan(&v.ID, &v.CreatedAt)
	return mapInsertErr(err)
}

// mapInsertErr translates a vote insert failure into the ledger's errors.
func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateVote
		case pgForeignKeyViolation:
			return fmt.Errorf("vote references unknown %s: %w", pgErr.ConstraintName, models.ErrNotFound)
		}
	}
	return models.Unavailable("insert vote", err)
}

// CountByIdea returns the number of votes for an idea.
func (r *Repository) CountByIdea(ctx context.Context, ideaID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM votes WHERE idea_id = $1`
	var n int
	if err := r.pool.QueryRow(ctx, q, ideaID).Scan(&n); err != nil {
		return 0, models.Unavailable("count votes", err)
	}
	return n, nil
}

// VotersByIdea returns target user ids for an idea in vote order.
func (r *Repository) VotersByIdea(ctx context.Context, ideaID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT target_user_id FROM votes WHERE idea_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, ideaID)
	if err != nil {
		return nil, models.Unavailable("list voters", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, models.Unavailable("scan voter", err)
		}
		out = append(out, id)
	}
	return out, models.Unavailable("list voters", rows.Err())
}

// List returns the whole ledger.
func (r *Repository) List(ctx context.Context) ([]models.Vote, error) {
	const q = `SELECT id, idea_id, voter_id, voter_name, target_user_id, target_user_name, created_at
		FROM votes ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, models.Unavailable("list votes", err)
	}
	defer rows.Close()
	var out []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.IdeaID, &v.VoterID, &v.VoterName, &v.TargetUserID, &v.TargetUserName, &v.CreatedAt); err != nil {
			return nil, models.Unavailable("scan vote", err)
		}
		out = append(out, v)
	}
	return out, models.Unavailable("list votes", rows.Err())
}
