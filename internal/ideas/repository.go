package ideas

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votestream/backend/internal/models"
)

// Repository handles idea persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an ideas repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertIdea = `INSERT INTO ideas (id, title, description, author_id)
	VALUES (gen_random_uuid(), $1, $2, $3)
	RETURNING id, created_at`

// Create inserts a new idea.
func (r *Repository) Create(ctx context.Context, idea *models.Idea) error {
	err := r.pool.QueryRow(ctx, insertIdea, idea.Title, idea.Description, idea.AuthorID).
		Scan(&idea.ID, &idea.CreatedAt)
	return models.Unavailable("insert idea", err)
}

// CreateBatch inserts all ideas in one transaction.
func (r *Repository) CreateBatch(ctx context.Context, ideas []*models.Idea) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Unavailable("begin idea batch", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, idea := range ideas {
		if err := tx.QueryRow(ctx, insertIdea, idea.Title, idea.Description, idea.AuthorID).
			Scan(&idea.ID, &idea.CreatedAt); err != nil {
			return models.Unavailable("insert idea", err)
		}
	}
	return models.Unavailable("commit idea batch", tx.Commit(ctx))
}

// GetByID returns an idea by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	const q = `SELECT i.id, i.title, i.description, i.author_id, COALESCE(u.name, 'Unknown'), i.created_at
		FROM ideas i LEFT JOIN users u ON u.id = i.author_id WHERE i.id = $1`
	var idea models.Idea
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&idea.ID, &idea.Title, &idea.Description, &idea.AuthorID, &idea.AuthorName, &idea.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, models.Unavailable("get idea", err)
	}
	return &idea, nil
}

// List returns all ideas in insertion order.
func (r *Repository) List(ctx context.Context) ([]models.Idea, error) {
	const q = `SELECT i.id, i.title, i.description, i.author_id, COALESCE(u.name, 'Unknown'), i.created_at
		FROM ideas i LEFT JOIN users u ON u.id = i.author_id ORDER BY i.seq`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, models.Unavailable("list ideas", err)
	}
	defer rows.Close()
	var list []models.Idea
	for rows.Next() {
		var idea models.Idea
		if err := rows.Scan(&idea.ID, &idea.Title, &idea.Description, &idea.AuthorID, &idea.AuthorName, &idea.CreatedAt); err != nil {
			return nil, models.Unavailable("scan idea", err)
		}
		list = append(list, idea)
	}
	return list, models.Unavailable("list ideas", rows.Err())
}
