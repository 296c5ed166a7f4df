package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// statements is the idempotent DDL for every table the services touch.
// Applied at startup; additive changes only.
var statements = []string{
	`
CREATE TABLE IF NOT EXISTS users (
    id                          UUID PRIMARY KEY,
    email                       TEXT NOT NULL UNIQUE,
    full_name                   TEXT NOT NULL DEFAULT '',
    is_active                   BOOLEAN NOT NULL DEFAULT TRUE,
    max_series                  INT NOT NULL DEFAULT 3,
    max_videos_per_month        INT NOT NULL DEFAULT 30,
    videos_generated_this_month INT NOT NULL DEFAULT 0,
    created_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`
CREATE TABLE IF NOT EXISTS series (
    id                      UUID PRIMARY KEY,
    user_id                 UUID NOT NULL REFERENCES users(id),
    title                   TEXT NOT NULL,
    description             TEXT NOT NULL DEFAULT '',
    topic                   TEXT NOT NULL DEFAULT '',
    prompt_template         TEXT NOT NULL DEFAULT '',
    language                TEXT NOT NULL DEFAULT 'en',
    tone                    TEXT NOT NULL DEFAULT '',
    target_duration_seconds INT NOT NULL DEFAULT 45,
    schedule                JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_active               BOOLEAN NOT NULL DEFAULT TRUE,
    channels                JSONB NOT NULL DEFAULT '{}'::jsonb,
    visual_style            JSONB NOT NULL DEFAULT '{}'::jsonb,
    voice_id                TEXT,
    tts_provider            TEXT NOT NULL DEFAULT 'elevenlabs',
    total_episodes          INT NOT NULL DEFAULT 0,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at              TIMESTAMPTZ
);`,
	`
CREATE TABLE IF NOT EXISTS videos (
    id                     UUID PRIMARY KEY,
    series_id              UUID NOT NULL REFERENCES series(id),
    episode_number         INT NOT NULL,
    title                  TEXT NOT NULL DEFAULT '',
    hook_text              TEXT NOT NULL DEFAULT '',
    script                 TEXT NOT NULL DEFAULT '',
    description            TEXT NOT NULL DEFAULT '',
    tags                   JSONB NOT NULL DEFAULT '[]'::jsonb,
    status                 TEXT NOT NULL DEFAULT 'pending',
    error_message          TEXT,
    retry_count            INT NOT NULL DEFAULT 0,
    voice_url              TEXT,
    voice_duration_seconds DOUBLE PRECISION,
    video_url              TEXT,
    thumbnail_url          TEXT,
    scenes                 JSONB NOT NULL DEFAULT '[]'::jsonb,
    metrics                JSONB NOT NULL DEFAULT '{}'::jsonb,
    platform_ids           JSONB NOT NULL DEFAULT '{}'::jsonb,
    scheduled_publish_at   TIMESTAMPTZ,
    published_at           TIMESTAMPTZ,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_series_created ON videos (series_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos (status);`,
	`
CREATE TABLE IF NOT EXISTS publish_jobs (
    id                  UUID PRIMARY KEY,
    video_id            UUID NOT NULL REFERENCES videos(id),
    platform            TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'pending',
    platform_content_id TEXT,
    platform_url        TEXT,
    scheduled_at        TIMESTAMPTZ,
    published_at        TIMESTAMPTZ,
    error_message       TEXT,
    retry_count         INT NOT NULL DEFAULT 0,
    max_retries         INT NOT NULL DEFAULT 3,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_publish_jobs_video ON publish_jobs (video_id);`,
	`
CREATE TABLE IF NOT EXISTS platform_connections (
    id                UUID PRIMARY KEY,
    user_id           UUID NOT NULL REFERENCES users(id),
    platform          TEXT NOT NULL,
    platform_user_id  TEXT,
    platform_username TEXT,
    channel_name      TEXT,
    access_token      TEXT NOT NULL,
    refresh_token     TEXT,
    token_expires_at  TIMESTAMPTZ,
    scopes            TEXT NOT NULL DEFAULT '',
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_connections_user_platform ON platform_connections (user_id, platform);`,
	`
CREATE TABLE IF NOT EXISTS tasks (
    id           UUID PRIMARY KEY,
    name         TEXT NOT NULL,
    payload      JSONB NOT NULL DEFAULT '{}'::jsonb,
    status       TEXT NOT NULL DEFAULT 'queued',
    attempts     INT NOT NULL DEFAULT 0,
    max_attempts INT NOT NULL DEFAULT 3,
    last_error   TEXT,
    run_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks (status, run_at);`,
}

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: apply schema: %w", err)
		}
	}
	return nil
}
