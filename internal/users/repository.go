package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votestream/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts the user or updates the row with the same email. The role is only
// raised to admin, never lowered, so a config change cannot demote a running admin.
func (r *Repository) Upsert(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, name, department, role)
		VALUES ($1, $2, NULLIF($3,''), $4)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			role = CASE WHEN EXCLUDED.role = 'admin' THEN 'admin' ELSE users.role END
		RETURNING id, role, created_at`
	var role string
	err := r.pool.QueryRow(ctx, q, u.Email, u.Name, u.Department, string(u.Role)).
		Scan(&u.ID, &role, &u.CreatedAt)
	if err != nil {
		return models.Unavailable("upsert user", err)
	}
	u.Role = models.Role(role)
	return nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, name, COALESCE(department,''), role, created_at FROM users WHERE id = $1`
	var u models.User
	var role string
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &u.Department, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.Unavailable("get user", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

// Search returns up to limit users whose name or email contains query.
func (r *Repository) Search(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	const q = `SELECT id, email, name, COALESCE(department,''), role, created_at FROM users
		WHERE id <> $1 AND (name ILIKE $2 OR email ILIKE $2)
		ORDER BY name, email LIMIT $3`
	rows, err := r.pool.Query(ctx, q, exclude, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, models.Unavailable("search users", err)
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		var u models.User
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Department, &role, &u.CreatedAt); err != nil {
			return nil, models.Unavailable("search users", err)
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Unavailable("search users", err)
	}
	return list, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(strings.TrimSpace(s))
}
