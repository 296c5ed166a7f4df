package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoshorts/internal/domain"
)

// ConnectionRepositoryPG implements domain.ConnectionRepository.
type ConnectionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewConnectionRepository creates a new connection repository backed by
// PostgreSQL.
func NewConnectionRepository(pool *pgxpool.Pool) *ConnectionRepositoryPG {
	return &ConnectionRepositoryPG{pool: pool}
}

const connectionColumns = `
id, user_id, platform, platform_user_id, platform_username, channel_name,
access_token, refresh_token, token_expires_at, scopes, is_active,
created_at, updated_at
`

// GetActive returns the user's active connection for the platform.
func (r *ConnectionRepositoryPG) GetActive(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformConnection, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+connectionColumns+`
FROM platform_connections
WHERE user_id = $1 AND platform = $2 AND is_active
ORDER BY created_at DESC
LIMIT 1;
`, userID, platform)
	return scanConnection(row)
}

// ListExpiring returns active refreshable connections whose tokens expire
// before the given instant.
func (r *ConnectionRepositoryPG) ListExpiring(ctx context.Context, before time.Time) ([]domain.PlatformConnection, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+connectionColumns+`
FROM platform_connections
WHERE is_active
  AND refresh_token IS NOT NULL
  AND token_expires_at IS NOT NULL
  AND token_expires_at <= $1
ORDER BY token_expires_at ASC;
`, before)
	if err != nil {
		return nil, fmt.Errorf("list expiring connections: %w", err)
	}
	defer rows.Close()

	var out []domain.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conn)
	}
	return out, rows.Err()
}

// UpdateToken stores a freshly issued access token.
func (r *ConnectionRepositoryPG) UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE platform_connections
SET access_token = $2, token_expires_at = $3, updated_at = NOW()
WHERE id = $1;
`, id, accessToken, expiresAt)
	if err != nil {
		return fmt.Errorf("update connection token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*domain.PlatformConnection, error) {
	var conn domain.PlatformConnection
	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Platform,
		&conn.PlatformUserID,
		&conn.PlatformUsername,
		&conn.ChannelName,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.TokenExpiresAt,
		&conn.Scopes,
		&conn.IsActive,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}
