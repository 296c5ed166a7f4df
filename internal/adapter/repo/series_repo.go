package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoshorts/internal/domain"
)

// SeriesRepositoryPG implements domain.SeriesRepository.
type SeriesRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSeriesRepository creates a new series repository backed by PostgreSQL.
func NewSeriesRepository(pool *pgxpool.Pool) *SeriesRepositoryPG {
	return &SeriesRepositoryPG{pool: pool}
}

const seriesColumns = `
id, user_id, title, description, topic, prompt_template, language, tone,
target_duration_seconds, schedule, is_active, channels, visual_style,
voice_id, tts_provider, total_episodes, created_at, updated_at, deleted_at
`

// GetByID fetches a series by its identifier. Soft-deleted series are
// treated as missing.
func (r *SeriesRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+seriesColumns+` FROM series WHERE id = $1 AND deleted_at IS NULL;
`, id)
	return scanSeries(row)
}

// ListActive returns every active, non-deleted series.
func (r *SeriesRepositoryPG) ListActive(ctx context.Context) ([]domain.Series, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+seriesColumns+` FROM series WHERE is_active AND deleted_at IS NULL ORDER BY created_at ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("list active series: %w", err)
	}
	defer rows.Close()

	var out []domain.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *series)
	}
	return out, rows.Err()
}

func scanSeries(row pgx.Row) (*domain.Series, error) {
	var (
		series      domain.Series
		schedule    []byte
		channels    []byte
		visualStyle []byte
	)
	err := row.Scan(
		&series.ID,
		&series.UserID,
		&series.Title,
		&series.Description,
		&series.Topic,
		&series.PromptTemplate,
		&series.Language,
		&series.Tone,
		&series.TargetDurationSeconds,
		&schedule,
		&series.IsActive,
		&channels,
		&visualStyle,
		&series.VoiceID,
		&series.TTSProvider,
		&series.TotalEpisodes,
		&series.CreatedAt,
		&series.UpdatedAt,
		&series.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := fromJSONB(schedule, &series.Schedule); err != nil {
		return nil, err
	}
	if err := fromJSONB(channels, &series.Channels); err != nil {
		return nil, err
	}
	if err := fromJSONB(visualStyle, &series.VisualStyle); err != nil {
		return nil, err
	}
	return &series, nil
}
