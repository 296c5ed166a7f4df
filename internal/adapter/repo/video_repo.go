package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoshorts/internal/domain"
)

// VideoRepositoryPG implements domain.VideoRepository.
type VideoRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewVideoRepository creates a new video repository backed by PostgreSQL.
func NewVideoRepository(pool *pgxpool.Pool) *VideoRepositoryPG {
	return &VideoRepositoryPG{pool: pool}
}

// CreateEpisode inserts the video and bumps the series and owner counters in
// one transaction.
func (r *VideoRepositoryPG) CreateEpisode(ctx context.Context, video *domain.Video) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create episode: %w", err)
	}
	defer tx.Rollback(ctx)

	scenes, err := jsonb(video.Scenes)
	if err != nil {
		return err
	}
	tags, err := jsonb(video.Tags)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO videos (id, series_id, episode_number, title, status, scenes, tags, scheduled_publish_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`,
		video.ID,
		video.SeriesID,
		video.EpisodeNumber,
		video.Title,
		video.Status,
		scenes,
		tags,
		video.ScheduledPublishAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	_, err = tx.Exec(ctx, `
UPDATE series SET total_episodes = total_episodes + 1, updated_at = NOW() WHERE id = $1;
`, video.SeriesID)
	if err != nil {
		return fmt.Errorf("bump series counter: %w", err)
	}

	_, err = tx.Exec(ctx, `
UPDATE users
SET videos_generated_this_month = videos_generated_this_month + 1, updated_at = NOW()
WHERE id = (SELECT user_id FROM series WHERE id = $1);
`, video.SeriesID)
	if err != nil {
		return fmt.Errorf("bump user counter: %w", err)
	}

	return tx.Commit(ctx)
}

const videoColumns = `
id, series_id, episode_number, title, hook_text, script, description, tags,
status, error_message, retry_count,
voice_url, voice_duration_seconds, video_url, thumbnail_url,
scenes, metrics, platform_ids,
scheduled_publish_at, published_at, created_at, updated_at
`

// GetByID fetches a video by its identifier.
func (r *VideoRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1;`, id)
	return scanVideo(row)
}

// TransitionStatus performs the compare-and-swap status write. A video that
// exists but is no longer in the expected state yields ErrStatusConflict.
func (r *VideoRepositoryPG) TransitionStatus(ctx context.Context, id string, from, to domain.VideoStatus) error {
	if err := domain.CheckTransition(from, to); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2;
`, id, from, to)
	if err != nil {
		return fmt.Errorf("transition video status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id, from)
	}
	return nil
}

// SaveContent persists the fields accumulated by pipeline stages. Status is
// deliberately not part of this write.
func (r *VideoRepositoryPG) SaveContent(ctx context.Context, video *domain.Video) error {
	scenes, err := jsonb(video.Scenes)
	if err != nil {
		return err
	}
	tags, err := jsonb(video.Tags)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE videos
SET title = $2,
    hook_text = $3,
    script = $4,
    description = $5,
    tags = $6,
    scenes = $7,
    voice_url = $8,
    voice_duration_seconds = $9,
    video_url = $10,
    thumbnail_url = $11,
    updated_at = NOW()
WHERE id = $1;
`,
		video.ID,
		video.Title,
		video.HookText,
		video.Script,
		video.Description,
		tags,
		scenes,
		video.VoiceURL,
		video.VoiceDurationSeconds,
		video.VideoURL,
		video.ThumbnailURL,
	)
	if err != nil {
		return fmt.Errorf("save video content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records a stage error with the same CAS guard as transitions.
func (r *VideoRepositoryPG) MarkFailed(ctx context.Context, id string, from domain.VideoStatus, message string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET status = $3, error_message = $4, updated_at = NOW()
WHERE id = $1 AND status = $2;
`, id, from, domain.VideoStatusFailed, message)
	if err != nil {
		return fmt.Errorf("mark video failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id, from)
	}
	return nil
}

// Reset persists a regenerate.
func (r *VideoRepositoryPG) Reset(ctx context.Context, video *domain.Video) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET status = $2, error_message = NULL, retry_count = $3, updated_at = NOW()
WHERE id = $1;
`, video.ID, video.Status, video.RetryCount)
	if err != nil {
		return fmt.Errorf("reset video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SavePlatformIDs stores the content identifiers returned by the platforms.
func (r *VideoRepositoryPG) SavePlatformIDs(ctx context.Context, id string, ids domain.PlatformIDs) error {
	body, err := jsonb(ids)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET platform_ids = $2, updated_at = NOW() WHERE id = $1;
`, id, body)
	if err != nil {
		return fmt.Errorf("save platform ids: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPublished records the publish instant.
func (r *VideoRepositoryPG) SetPublished(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET published_at = $2, updated_at = NOW() WHERE id = $1;
`, id, at)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveMetrics stores the aggregated platform statistics.
func (r *VideoRepositoryPG) SaveMetrics(ctx context.Context, id string, metrics domain.Metrics) error {
	body, err := jsonb(metrics)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET metrics = $2, updated_at = NOW() WHERE id = $1;
`, id, body)
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExistsForSeriesSince reports whether the series already has an episode
// created at or after the given instant.
func (r *VideoRepositoryPG) ExistsForSeriesSince(ctx context.Context, seriesID string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM videos WHERE series_id = $1 AND created_at >= $2);
`, seriesID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check episode existence: %w", err)
	}
	return exists, nil
}

// ListPublished returns all published videos, newest first.
func (r *VideoRepositoryPG) ListPublished(ctx context.Context) ([]domain.Video, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+videoColumns+` FROM videos WHERE status = $1 ORDER BY published_at DESC NULLS LAST;
`, domain.VideoStatusPublished)
	if err != nil {
		return nil, fmt.Errorf("list published videos: %w", err)
	}
	defer rows.Close()

	var out []domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *video)
	}
	return out, rows.Err()
}

func (r *VideoRepositoryPG) conflictOrMissing(ctx context.Context, id string, expected domain.VideoStatus) error {
	var current domain.VideoStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM videos WHERE id = $1;`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: expected %q, found %q", domain.ErrStatusConflict, expected, current)
}

func scanVideo(row pgx.Row) (*domain.Video, error) {
	var (
		video       domain.Video
		tags        []byte
		scenes      []byte
		metrics     []byte
		platformIDs []byte
	)
	err := row.Scan(
		&video.ID,
		&video.SeriesID,
		&video.EpisodeNumber,
		&video.Title,
		&video.HookText,
		&video.Script,
		&video.Description,
		&tags,
		&video.Status,
		&video.ErrorMessage,
		&video.RetryCount,
		&video.VoiceURL,
		&video.VoiceDurationSeconds,
		&video.VideoURL,
		&video.ThumbnailURL,
		&scenes,
		&metrics,
		&platformIDs,
		&video.ScheduledPublishAt,
		&video.PublishedAt,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := fromJSONB(tags, &video.Tags); err != nil {
		return nil, err
	}
	if err := fromJSONB(scenes, &video.Scenes); err != nil {
		return nil, err
	}
	if err := fromJSONB(metrics, &video.Metrics); err != nil {
		return nil, err
	}
	if err := fromJSONB(platformIDs, &video.PlatformIDs); err != nil {
		return nil, err
	}
	return &video, nil
}

func jsonb(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return body, nil
}

func fromJSONB(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode jsonb: %w", err)
	}
	return nil
}
