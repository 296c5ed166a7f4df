package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
)

// Fetcher reads current statistics for one platform's content item.
type Fetcher interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, contentID, accessToken string) (*domain.Metrics, error)
}

// Options wires the analytics sync's collaborators.
type Options struct {
	Videos      domain.VideoRepository
	Series      domain.SeriesRepository
	Connections domain.ConnectionRepository
	Fetchers    []Fetcher
	Logger      zerolog.Logger
}

// Sync pulls platform statistics for published videos and aggregates them
// onto the video record. It is best effort throughout: an unreachable
// platform or missing connection skips that slice of the numbers and the
// sync moves on.
type Sync struct {
	videos      domain.VideoRepository
	series      domain.SeriesRepository
	connections domain.ConnectionRepository
	fetchers    map[domain.Platform]Fetcher
	logger      zerolog.Logger
}

func New(opts Options) *Sync {
	fetchers := make(map[domain.Platform]Fetcher, len(opts.Fetchers))
	for _, f := range opts.Fetchers {
		fetchers[f.Platform()] = f
	}
	return &Sync{
		videos:      opts.Videos,
		series:      opts.Series,
		connections: opts.Connections,
		fetchers:    fetchers,
		logger:      opts.Logger,
	}
}

// Run refreshes metrics for every published video.
func (s *Sync) Run(ctx context.Context) error {
	videos, err := s.videos.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("analytics: list published: %w", err)
	}
	for i := range videos {
		if err := s.syncVideo(ctx, &videos[i]); err != nil {
			s.logger.Warn().Err(err).Str("video_id", videos[i].ID).Msg("metrics sync skipped")
		}
	}
	return nil
}

func (s *Sync) syncVideo(ctx context.Context, video *domain.Video) error {
	series, err := s.series.GetByID(ctx, video.SeriesID)
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}

	var total domain.Metrics
	synced := 0
	for platform, contentID := range platformContent(video.PlatformIDs) {
		fetcher, ok := s.fetchers[platform]
		if !ok {
			continue
		}
		conn, err := s.connections.GetActive(ctx, series.UserID, platform)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn().Err(err).Str("platform", string(platform)).Msg("connection lookup failed")
			}
			continue
		}
		m, err := fetcher.Fetch(ctx, contentID, conn.AccessToken)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("video_id", video.ID).
				Str("platform", string(platform)).
				Msg("platform metrics fetch failed")
			continue
		}
		total.Views += m.Views
		total.Likes += m.Likes
		total.Comments += m.Comments
		total.Shares += m.Shares
		total.WatchTimeSeconds += m.WatchTimeSeconds
		synced++
	}

	if synced == 0 {
		return nil
	}
	if total.Views > 0 {
		total.AvgViewDuration = float64(total.WatchTimeSeconds) / float64(total.Views)
	}
	if video.VoiceDurationSeconds != nil && *video.VoiceDurationSeconds > 0 {
		total.RetentionRate = total.AvgViewDuration / *video.VoiceDurationSeconds
	}
	if err := s.videos.SaveMetrics(ctx, video.ID, total); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// platformContent flattens the recorded platform ids into a lookup map.
func platformContent(ids domain.PlatformIDs) map[domain.Platform]string {
	out := make(map[domain.Platform]string, 3)
	if ids.YouTubeID != nil {
		out[domain.PlatformYouTube] = *ids.YouTubeID
	}
	if ids.TikTokID != nil {
		out[domain.PlatformTikTok] = *ids.TikTokID
	}
	if ids.InstagramID != nil {
		out[domain.PlatformInstagram] = *ids.InstagramID
	}
	return out
}
