package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoshorts/internal/infra"
)

// Task names understood by the worker.
const (
	TaskVideoGenerate   = "video.generate"
	TaskPublishPlatform = "publish.platform"
	TaskAnalyticsSync   = "analytics.sync"
)

// ErrNoTask is returned by Claim when the queue is empty.
var ErrNoTask = errors.New("no task available")

// Task is one claimed unit of work. Delivery is at-least-once; handlers must
// tolerate redelivery.
type Task struct {
	ID          string
	Name        string
	Payload     json.RawMessage
	Attempts    int
	MaxAttempts int
}

// Enqueuer is the fire-and-forget submission contract orchestrators depend on.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) error
	EnqueueAt(ctx context.Context, name string, payload any, runAt time.Time) error
}

// Queue is a durable task queue backed by a Postgres table. Claims use
// FOR UPDATE SKIP LOCKED so any number of workers can poll concurrently
// without double-delivery inside a single claim window.
type Queue struct {
	pool        *pgxpool.Pool
	logger      infra.Logger
	maxAttempts int
}

func New(pool *pgxpool.Pool, logger infra.Logger, maxAttempts int) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{pool: pool, logger: logger, maxAttempts: maxAttempts}
}

// Enqueue submits a task runnable immediately.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) error {
	return q.EnqueueAt(ctx, name, payload, time.Now().UTC())
}

// EnqueueAt submits a task that becomes runnable at runAt.
func (q *Queue) EnqueueAt(ctx context.Context, name string, payload any, runAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal payload for %s: %w", name, err)
	}
	_, err = q.pool.Exec(ctx, `
INSERT INTO tasks (id, name, payload, status, attempts, max_attempts, run_at)
VALUES ($1, $2, $3, 'queued', 0, $4, $5);
`, uuid.NewString(), name, body, q.maxAttempts, runAt)
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", name, err)
	}
	q.logger.Debug().Str("task", name).Time("run_at", runAt).Msg("queue: task enqueued")
	return nil
}

// Claim picks the oldest runnable task and marks it running. Returns ErrNoTask
// when nothing is due.
func (q *Queue) Claim(ctx context.Context) (*Task, error) {
	row := q.pool.QueryRow(ctx, `
WITH next_task AS (
    SELECT id
    FROM tasks
    WHERE status = 'queued' AND run_at <= now()
    ORDER BY run_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
updated AS (
    UPDATE tasks
    SET status = 'running', attempts = attempts + 1, updated_at = now()
    WHERE id IN (SELECT id FROM next_task)
    RETURNING id, name, payload, attempts, max_attempts
)
SELECT * FROM updated;
`)
	var t Task
	if err := row.Scan(&t.ID, &t.Name, &t.Payload, &t.Attempts, &t.MaxAttempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTask
		}
		return nil, fmt.Errorf("queue: claim: %w", err)
	}
	t.Payload = append(json.RawMessage(nil), t.Payload...)
	return &t, nil
}

// Complete removes a finished task.
func (q *Queue) Complete(ctx context.Context, taskID string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1;`, taskID)
	return err
}

// Fail records a failed attempt. Tasks with attempts remaining are requeued
// with exponential backoff; exhausted tasks are parked as dead for inspection.
func (q *Queue) Fail(ctx context.Context, t *Task, taskErr error) error {
	msg := ""
	if taskErr != nil {
		msg = taskErr.Error()
	}
	if t.Attempts >= t.MaxAttempts {
		_, err := q.pool.Exec(ctx, `
UPDATE tasks SET status = 'dead', last_error = $2, updated_at = now() WHERE id = $1;
`, t.ID, msg)
		q.logger.Error().Str("task", t.Name).Str("task_id", t.ID).Str("error", msg).Msg("queue: task dead")
		return err
	}
	runAt := time.Now().UTC().Add(Backoff(t.Attempts))
	_, err := q.pool.Exec(ctx, `
UPDATE tasks SET status = 'queued', last_error = $2, run_at = $3, updated_at = now() WHERE id = $1;
`, t.ID, msg, runAt)
	q.logger.Warn().
		Str("task", t.Name).
		Str("task_id", t.ID).
		Int("attempt", t.Attempts).
		Time("retry_at", runAt).
		Str("error", msg).
		Msg("queue: task requeued")
	return err
}

// Backoff returns the delay before retrying after the given attempt number
// (1-based): 30s, 60s, 120s, ... capped at 10 minutes.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 30 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return d
}
