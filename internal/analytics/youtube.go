package analytics

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"autoshorts/internal/domain"
)

// YouTubeFetcher reads video statistics through the Data API v3.
type YouTubeFetcher struct{}

func NewYouTubeFetcher() *YouTubeFetcher { return &YouTubeFetcher{} }

func (y *YouTubeFetcher) Platform() domain.Platform { return domain.PlatformYouTube }

func (y *YouTubeFetcher) Fetch(ctx context.Context, contentID, accessToken string) (*domain.Metrics, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := youtubeapi.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("youtube analytics: create service: %w", err)
	}

	resp, err := svc.Videos.List([]string{"statistics"}).Id(contentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube analytics: list video %s: %w", contentID, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, fmt.Errorf("youtube analytics: %w: video %s", domain.ErrNotFound, contentID)
	}

	stats := resp.Items[0].Statistics
	return &domain.Metrics{
		Views:    int64(stats.ViewCount),
		Likes:    int64(stats.LikeCount),
		Comments: int64(stats.CommentCount),
	}, nil
}
