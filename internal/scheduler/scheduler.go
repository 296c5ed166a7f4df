package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/pipeline"
	"autoshorts/internal/queue"
)

// tokenRefreshWindow is how far ahead of expiry access tokens are renewed.
const tokenRefreshWindow = 2 * time.Hour

// analyticsInterval is the cadence of the metrics sync task.
const analyticsInterval = 6 * time.Hour

// TokenRefresher exchanges a refresh token for a fresh access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, conn *domain.PlatformConnection) (accessToken string, expiresAt time.Time, err error)
}

// Options wires the scheduler's collaborators.
type Options struct {
	Series      domain.SeriesRepository
	Videos      domain.VideoRepository
	Users       domain.UserRepository
	Connections domain.ConnectionRepository
	Enqueuer    queue.Enqueuer
	Refresher   TokenRefresher
	Logger      zerolog.Logger
}

// Scheduler walks active series on every tick and creates the episodes
// whose schedule matches the current minute. It also runs the periodic
// side passes: token refresh, monthly counter reset and the metrics sync
// dispatch.
type Scheduler struct {
	series      domain.SeriesRepository
	videos      domain.VideoRepository
	users       domain.UserRepository
	connections domain.ConnectionRepository
	enqueuer    queue.Enqueuer
	refresher   TokenRefresher
	logger      zerolog.Logger
	now         func() time.Time

	lastResetDay    int
	lastAnalyticsAt time.Time
}

func New(opts Options) *Scheduler {
	return &Scheduler{
		series:      opts.Series,
		videos:      opts.Videos,
		users:       opts.Users,
		connections: opts.Connections,
		enqueuer:    opts.Enqueuer,
		refresher:   opts.Refresher,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// Tick runs one scheduling pass. Errors on individual series are logged and
// skipped so one broken series never stalls the rest.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now().UTC()

	if err := s.resetMonthlyCountersIfDue(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("monthly counter reset failed")
	}
	if err := s.RefreshExpiringTokens(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("token refresh pass failed")
	}
	if err := s.enqueueAnalyticsIfDue(ctx, now); err != nil {
		s.logger.Error().Err(err).Msg("analytics dispatch failed")
	}

	series, err := s.series.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list active series: %w", err)
	}

	for i := range series {
		if err := s.maybeCreateEpisode(ctx, &series[i], now); err != nil {
			s.logger.Error().
				Err(err).
				Str("series_id", series[i].ID).
				Msg("episode creation failed")
		}
	}
	return nil
}

// maybeCreateEpisode creates and dispatches the next episode of one series
// when its schedule is due, at most once per day, within the owner's quota.
func (s *Scheduler) maybeCreateEpisode(ctx context.Context, series *domain.Series, now time.Time) error {
	if !series.Schedule.DueAt(now) {
		return nil
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	exists, err := s.videos.ExistsForSeriesSince(ctx, series.ID, dayStart)
	if err != nil {
		return fmt.Errorf("check existing episode: %w", err)
	}
	if exists {
		return nil
	}

	user, err := s.users.GetByID(ctx, series.UserID)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if !user.HasMonthlyQuota() {
		s.logger.Warn().
			Str("series_id", series.ID).
			Str("user_id", user.ID).
			Int("limit", user.MaxVideosPerMonth).
			Msg("monthly quota exhausted, skipping episode")
		return nil
	}

	video := &domain.Video{
		ID:            uuid.NewString(),
		SeriesID:      series.ID,
		EpisodeNumber: series.TotalEpisodes + 1,
		Title:         fmt.Sprintf("%s - Episode %d", series.Title, series.TotalEpisodes+1),
		Status:        domain.VideoStatusPending,
	}
	if err := s.videos.CreateEpisode(ctx, video); err != nil {
		return fmt.Errorf("create episode: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, queue.TaskVideoGenerate, pipeline.Request{VideoID: video.ID}); err != nil {
		return fmt.Errorf("dispatch generation: %w", err)
	}

	s.logger.Info().
		Str("series_id", series.ID).
		Str("video_id", video.ID).
		Int("episode", video.EpisodeNumber).
		Msg("episode scheduled for generation")
	return nil
}

// RefreshExpiringTokens renews every active connection whose access token
// expires within the refresh window. Failures are per-connection.
func (s *Scheduler) RefreshExpiringTokens(ctx context.Context, now time.Time) error {
	if s.refresher == nil {
		return nil
	}
	expiring, err := s.connections.ListExpiring(ctx, now.Add(tokenRefreshWindow))
	if err != nil {
		return fmt.Errorf("scheduler: list expiring connections: %w", err)
	}
	for i := range expiring {
		conn := &expiring[i]
		if !conn.ExpiringWithin(now, tokenRefreshWindow) {
			continue
		}
		token, expiresAt, err := s.refresher.Refresh(ctx, conn)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("connection_id", conn.ID).
				Str("platform", string(conn.Platform)).
				Msg("token refresh failed")
			continue
		}
		if err := s.connections.UpdateToken(ctx, conn.ID, token, expiresAt); err != nil {
			s.logger.Error().Err(err).Str("connection_id", conn.ID).Msg("token persist failed")
			continue
		}
		s.logger.Info().
			Str("connection_id", conn.ID).
			Str("platform", string(conn.Platform)).
			Time("expires_at", expiresAt).
			Msg("access token refreshed")
	}
	return nil
}

// enqueueAnalyticsIfDue dispatches one metrics sync task every six hours.
func (s *Scheduler) enqueueAnalyticsIfDue(ctx context.Context, now time.Time) error {
	if !s.lastAnalyticsAt.IsZero() && now.Sub(s.lastAnalyticsAt) < analyticsInterval {
		return nil
	}
	if err := s.enqueuer.Enqueue(ctx, queue.TaskAnalyticsSync, struct{}{}); err != nil {
		return fmt.Errorf("scheduler: dispatch analytics sync: %w", err)
	}
	s.lastAnalyticsAt = now
	s.logger.Info().Msg("analytics sync dispatched")
	return nil
}

// resetMonthlyCountersIfDue zeroes per-user generation counters on the first
// tick of the first day of each month.
func (s *Scheduler) resetMonthlyCountersIfDue(ctx context.Context, now time.Time) error {
	if now.Day() != 1 {
		s.lastResetDay = 0
		return nil
	}
	if s.lastResetDay == now.Day() {
		return nil
	}
	if err := s.users.ResetMonthlyCounters(ctx); err != nil {
		return fmt.Errorf("scheduler: reset monthly counters: %w", err)
	}
	s.lastResetDay = now.Day()
	s.logger.Info().Msg("monthly generation counters reset")
	return nil
}

// Run ticks on the given interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduler tick failed")
			}
		}
	}
}
