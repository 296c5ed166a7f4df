package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoshorts/internal/domain"
)

// PublishJobRepositoryPG implements domain.PublishJobRepository.
type PublishJobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPublishJobRepository creates a new publish job repository backed by
// PostgreSQL.
func NewPublishJobRepository(pool *pgxpool.Pool) *PublishJobRepositoryPG {
	return &PublishJobRepositoryPG{pool: pool}
}

const publishJobColumns = `
id, video_id, platform, status, platform_content_id, platform_url,
scheduled_at, published_at, error_message, retry_count, max_retries,
created_at, updated_at
`

// Create inserts a new publish job.
func (r *PublishJobRepositoryPG) Create(ctx context.Context, job *domain.PublishJob) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO publish_jobs (id, video_id, platform, status, scheduled_at, retry_count, max_retries)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`,
		job.ID,
		job.VideoID,
		job.Platform,
		job.Status,
		job.ScheduledAt,
		job.RetryCount,
		job.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("insert publish job: %w", err)
	}
	return nil
}

// GetByID fetches a publish job by its identifier.
func (r *PublishJobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PublishJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+publishJobColumns+` FROM publish_jobs WHERE id = $1;`, id)
	return scanPublishJob(row)
}

// GetActive returns the single non-terminal job for the pair.
func (r *PublishJobRepositoryPG) GetActive(ctx context.Context, videoID string, platform domain.Platform) (*domain.PublishJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+publishJobColumns+`
FROM publish_jobs
WHERE video_id = $1 AND platform = $2 AND status NOT IN ($3, $4)
ORDER BY created_at DESC
LIMIT 1;
`, videoID, platform, domain.PublishStatusPublished, domain.PublishStatusFailed)
	return scanPublishJob(row)
}

// Update persists the job's mutable fields.
func (r *PublishJobRepositoryPG) Update(ctx context.Context, job *domain.PublishJob) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE publish_jobs
SET status = $2,
    platform_content_id = $3,
    platform_url = $4,
    published_at = $5,
    error_message = $6,
    retry_count = $7,
    updated_at = NOW()
WHERE id = $1;
`,
		job.ID,
		job.Status,
		job.PlatformContentID,
		job.PlatformURL,
		job.PublishedAt,
		job.ErrorMessage,
		job.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("update publish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByVideo returns every job ever created for the video.
func (r *PublishJobRepositoryPG) ListByVideo(ctx context.Context, videoID string) ([]domain.PublishJob, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+publishJobColumns+` FROM publish_jobs WHERE video_id = $1 ORDER BY created_at ASC;
`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list publish jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.PublishJob
	for rows.Next() {
		job, err := scanPublishJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func scanPublishJob(row pgx.Row) (*domain.PublishJob, error) {
	var job domain.PublishJob
	err := row.Scan(
		&job.ID,
		&job.VideoID,
		&job.Platform,
		&job.Status,
		&job.PlatformContentID,
		&job.PlatformURL,
		&job.ScheduledAt,
		&job.PublishedAt,
		&job.ErrorMessage,
		&job.RetryCount,
		&job.MaxRetries,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
