package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votestream/backend/internal/models"
)

// Repository stores session records in the voting_sessions table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a voting sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `name, round_id, phase, time_remaining, total_duration, updated_at`

func scanSession(row pgx.Row) (models.VotingSession, error) {
	var s models.VotingSession
	var phase string
	err := row.Scan(&s.Name, &s.ID, &phase, &s.TimeRemainingSeconds, &s.TotalDurationSeconds, &s.UpdatedAt)
	s.Phase = models.Phase(phase)
	return s, err
}

// ensure creates the idle record for name if it does not exist.
func (r *Repository) ensure(ctx context.Context, name string) error {
	const q = `INSERT INTO voting_sessions (name, phase) VALUES ($1, 'idle') ON CONFLICT (name) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, name)
	return err
}

// Load returns the record for name, creating an idle one on first use.
func (r *Repository) Load(ctx context.Context, name string) (models.VotingSession, error) {
	if err := r.ensure(ctx, name); err != nil {
		return models.VotingSession{}, models.Unavailable("ensure session", err)
	}
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM voting_sessions WHERE name = $1`, name))
	if err != nil {
		return models.VotingSession{}, models.Unavailable("load session", err)
	}
	return s.Normalized(), nil
}

// Transition is a conditional UPDATE; zero affected rows means the precondition failed.
func (r *Repository) Transition(ctx context.Context, next models.VotingSession, pre Precondition) (models.VotingSession, error) {
	if err := r.ensure(ctx, next.Name); err != nil {
		return models.VotingSession{}, models.Unavailable("ensure session", err)
	}
	phases := make([]string, 0, len(pre.Phases))
	for _, p := range pre.Phases {
		phases = append(phases, string(p))
	}
	next = next.Normalized()
	const q = `UPDATE voting_sessions
		SET round_id = $2, phase = $3, time_remaining = $4, total_duration = $5, updated_at = NOW()
		WHERE name = $1 AND phase = ANY($6::text[]) AND (NOT $7::bool OR round_id = $8)
		RETURNING ` + sessionColumns
	stored, err := scanSession(r.pool.QueryRow(ctx, q,
		next.Name, next.ID, string(next.Phase), next.TimeRemainingSeconds, next.TotalDurationSeconds,
		phases, pre.RoundID != uuid.Nil, pre.RoundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VotingSession{}, fmt.Errorf("session %s precondition failed: %w", next.Name, models.ErrInvalidState)
		}
		return models.VotingSession{}, models.Unavailable("transition session", err)
	}
	return stored.Normalized(), nil
}

// UpdateRemaining lowers time_remaining of the active round; it never raises it.
func (r *Repository) UpdateRemaining(ctx context.Context, name string, roundID uuid.UUID, remaining int) (bool, error) {
	const q = `UPDATE voting_sessions SET time_remaining = $3, updated_at = NOW()
		WHERE name = $1 AND round_id = $2 AND phase = 'active' AND time_remaining > $3`
	tag, err := r.pool.Exec(ctx, q, name, roundID, remaining)
	if err != nil {
		return false, models.Unavailable("update time remaining", err)
	}
	return tag.RowsAffected() == 1, nil
}
