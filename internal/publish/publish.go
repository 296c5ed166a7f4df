package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/publisher"
	"autoshorts/internal/queue"
	"autoshorts/internal/storage"
)

const (
	defaultMaxRetries = 3
	presignTTL        = 2 * time.Hour
)

// Request identifies one platform upload carried in a task payload.
type Request struct {
	JobID string `json:"job_id"`
}

// Options wires the publish orchestrator's collaborators.
type Options struct {
	Videos      domain.VideoRepository
	Jobs        domain.PublishJobRepository
	Connections domain.ConnectionRepository
	Series      domain.SeriesRepository
	Uploaders   publisher.Registry
	Store       storage.Store
	Enqueuer    queue.Enqueuer
	Logger      zerolog.Logger
}

// Orchestrator fans a reviewed video out to its platforms. Each platform
// gets an independent job; one platform failing never blocks the others,
// and the video becomes PUBLISHED only once every job has published.
type Orchestrator struct {
	videos      domain.VideoRepository
	jobs        domain.PublishJobRepository
	connections domain.ConnectionRepository
	series      domain.SeriesRepository
	uploaders   publisher.Registry
	store       storage.Store
	enqueuer    queue.Enqueuer
	logger      zerolog.Logger
	now         func() time.Time
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		videos:      opts.Videos,
		jobs:        opts.Jobs,
		connections: opts.Connections,
		series:      opts.Series,
		uploaders:   opts.Uploaders,
		store:       opts.Store,
		enqueuer:    opts.Enqueuer,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// Schedule moves an approved video into PUBLISHING and creates one pending
// job per requested platform. Jobs inherit the video's scheduled publish
// time; due jobs are dispatched immediately, future ones at their instant.
// A platform that already has an active job is skipped, which makes
// Schedule safe to redeliver.
func (o *Orchestrator) Schedule(ctx context.Context, videoID string, platforms []domain.Platform) error {
	video, err := o.videos.GetByID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("publish: load video %s: %w", videoID, err)
	}
	if len(platforms) == 0 {
		return fmt.Errorf("publish: video %s: no platforms requested", videoID)
	}
	for _, p := range platforms {
		if !domain.KnownPlatform(p) {
			return fmt.Errorf("publish: unknown platform %q", p)
		}
	}

	if video.Status == domain.VideoStatusApproved {
		if err := o.videos.TransitionStatus(ctx, videoID, domain.VideoStatusApproved, domain.VideoStatusPublishing); err != nil {
			return fmt.Errorf("publish: enter publishing: %w", err)
		}
	} else if video.Status != domain.VideoStatusPublishing {
		return fmt.Errorf("publish: video %s: %w: %q -> %q",
			videoID, domain.ErrInvalidTransition, video.Status, domain.VideoStatusPublishing)
	}

	now := o.now().UTC()
	for _, platform := range platforms {
		if _, err := o.jobs.GetActive(ctx, videoID, platform); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("publish: check active job: %w", err)
		}

		job := &domain.PublishJob{
			ID:          uuid.NewString(),
			VideoID:     videoID,
			Platform:    platform,
			Status:      domain.PublishStatusPending,
			ScheduledAt: video.ScheduledPublishAt,
			MaxRetries:  defaultMaxRetries,
		}
		if err := o.jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("publish: create job for %s: %w", platform, err)
		}

		payload := Request{JobID: job.ID}
		if job.Due(now) {
			err = o.enqueuer.Enqueue(ctx, queue.TaskPublishPlatform, payload)
		} else {
			err = o.enqueuer.EnqueueAt(ctx, queue.TaskPublishPlatform, payload, job.ScheduledAt.UTC())
		}
		if err != nil {
			return fmt.Errorf("publish: dispatch job for %s: %w", platform, err)
		}

		o.logger.Info().
			Str("video_id", videoID).
			Str("platform", string(platform)).
			Str("job_id", job.ID).
			Msg("publish job scheduled")
	}
	return nil
}

// ToPlatform executes one publish job end to end: resolve the connection,
// presign the rendered video, upload, and record the platform identifiers.
// A missing connection fails the job permanently; transport errors leave it
// retryable until MaxRetries is spent.
func (o *Orchestrator) ToPlatform(ctx context.Context, req Request) error {
	job, err := o.jobs.GetByID(ctx, req.JobID)
	if err != nil {
		return fmt.Errorf("publish: load job %s: %w", req.JobID, err)
	}
	if job.Terminal() {
		return nil
	}

	video, err := o.videos.GetByID(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("publish: load video %s: %w", job.VideoID, err)
	}
	if video.VideoURL == nil {
		return o.failJob(ctx, job, errors.New("video has no rendered file"), false)
	}

	series, err := o.series.GetByID(ctx, video.SeriesID)
	if err != nil {
		return fmt.Errorf("publish: load series %s: %w", video.SeriesID, err)
	}

	conn, err := o.connections.GetActive(ctx, series.UserID, job.Platform)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return o.failJob(ctx, job, fmt.Errorf("%w: no active %s connection", domain.ErrNoConnection, job.Platform), false)
		}
		return fmt.Errorf("publish: load connection: %w", err)
	}

	uploader, ok := o.uploaders.For(job.Platform)
	if !ok {
		return o.failJob(ctx, job, fmt.Errorf("no uploader for platform %q", job.Platform), false)
	}

	if err := o.transitionJob(ctx, job, domain.PublishStatusUploading); err != nil {
		return err
	}

	videoURL, err := o.store.Presign(ctx, *video.VideoURL, presignTTL)
	if err != nil {
		return o.failJob(ctx, job, fmt.Errorf("presign rendered video: %w", err), true)
	}

	result, err := uploader.Upload(ctx, publisher.Input{
		VideoURL:    videoURL,
		Title:       video.Title,
		Description: video.Description,
		Tags:        video.Tags,
		AccessToken: conn.AccessToken,
	})
	if err != nil {
		return o.failJob(ctx, job, err, !errors.Is(err, domain.ErrNoConnection))
	}

	now := o.now().UTC()
	job.Status = domain.PublishStatusPublished
	job.PlatformContentID = &result.PlatformContentID
	if result.URL != "" {
		job.PlatformURL = &result.URL
	}
	job.PublishedAt = &now
	job.ErrorMessage = nil
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("publish: persist published job: %w", err)
	}

	if err := o.recordPlatformID(ctx, video, job.Platform, result.PlatformContentID); err != nil {
		return err
	}

	o.logger.Info().
		Str("video_id", video.ID).
		Str("platform", string(job.Platform)).
		Str("content_id", result.PlatformContentID).
		Msg("video published to platform")

	return o.finishIfComplete(ctx, video, now)
}

// finishIfComplete flips the video to PUBLISHED once every job for it has
// published. Failed or in-flight jobs keep the video in PUBLISHING.
func (o *Orchestrator) finishIfComplete(ctx context.Context, video *domain.Video, now time.Time) error {
	jobs, err := o.jobs.ListByVideo(ctx, video.ID)
	if err != nil {
		return fmt.Errorf("publish: list jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}
	for _, j := range jobs {
		if j.Status != domain.PublishStatusPublished {
			return nil
		}
	}
	if err := o.videos.TransitionStatus(ctx, video.ID, domain.VideoStatusPublishing, domain.VideoStatusPublished); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil
		}
		return fmt.Errorf("publish: finish video: %w", err)
	}
	if err := o.videos.SetPublished(ctx, video.ID, now); err != nil {
		return fmt.Errorf("publish: record publish time: %w", err)
	}
	return nil
}

func (o *Orchestrator) transitionJob(ctx context.Context, job *domain.PublishJob, to domain.PublishStatus) error {
	if err := domain.CheckPublishTransition(job.Status, to); err != nil {
		return fmt.Errorf("publish: job %s: %w", job.ID, err)
	}
	job.Status = to
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("publish: persist job %s: %w", job.ID, err)
	}
	return nil
}

// failJob records the error on the job. Retryable failures bump the retry
// counter and return the cause so the queue redelivers; permanent ones park
// the job as failed and complete the task.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.PublishJob, cause error, retryable bool) error {
	msg := cause.Error()
	job.ErrorMessage = &msg

	if retryable && job.Retryable() {
		job.RetryCount++
		job.Status = domain.PublishStatusPending
		if err := o.jobs.Update(ctx, job); err != nil {
			return fmt.Errorf("publish: persist retry: %w", err)
		}
		return fmt.Errorf("publish: %s upload: %w", job.Platform, cause)
	}

	job.Status = domain.PublishStatusFailed
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("publish: persist failure: %w", err)
	}
	o.logger.Error().
		Str("job_id", job.ID).
		Str("platform", string(job.Platform)).
		Str("error", msg).
		Msg("publish job failed permanently")
	return nil
}

func (o *Orchestrator) recordPlatformID(ctx context.Context, video *domain.Video, platform domain.Platform, contentID string) error {
	ids := video.PlatformIDs
	switch platform {
	case domain.PlatformYouTube:
		ids.YouTubeID = &contentID
	case domain.PlatformTikTok:
		ids.TikTokID = &contentID
	case domain.PlatformInstagram:
		ids.InstagramID = &contentID
	}
	video.PlatformIDs = ids
	if err := o.videos.SavePlatformIDs(ctx, video.ID, ids); err != nil {
		return fmt.Errorf("publish: save platform ids: %w", err)
	}
	return nil
}
