package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoshorts/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, email, full_name, is_active, max_series, max_videos_per_month, videos_generated_this_month, created_at, updated_at
FROM users WHERE id = $1;
`, id)
	return scanUser(row)
}

// ResetMonthlyCounters zeroes every user's monthly generation counter.
func (r *UserRepositoryPG) ResetMonthlyCounters(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
UPDATE users SET videos_generated_this_month = 0, updated_at = NOW()
WHERE videos_generated_this_month > 0;
`)
	if err != nil {
		return fmt.Errorf("reset monthly counters: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.IsActive,
		&u.MaxSeries,
		&u.MaxVideosPerMonth,
		&u.VideosGeneratedThisMonth,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
