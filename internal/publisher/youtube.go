package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"autoshorts/internal/domain"
)

// YouTube uploads rendered videos as Shorts through the Data API v3.
type YouTube struct {
	client *http.Client
}

func NewYouTube(httpClient *http.Client) *YouTube {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &YouTube{client: httpClient}
}

func (y *YouTube) Platform() domain.Platform { return domain.PlatformYouTube }

func (y *YouTube) Upload(ctx context.Context, in Input) (*Result, error) {
	if in.AccessToken == "" {
		return nil, fmt.Errorf("youtube: %w", domain.ErrNoConnection)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: in.AccessToken})
	svc, err := youtubeapi.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	media, err := y.fetchVideo(ctx, in.VideoURL)
	if err != nil {
		return nil, fmt.Errorf("youtube: fetch rendered video: %w", err)
	}
	defer media.Close()

	upload := &youtubeapi.Video{
		Snippet: &youtubeapi.VideoSnippet{
			Title:       in.Title,
			Description: in.Description,
			Tags:        in.Tags,
			CategoryId:  "22",
		},
		Status: &youtubeapi.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
		},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, upload)
	call.Media(media)
	published, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube: insert video: %w", err)
	}

	return &Result{
		PlatformContentID: published.Id,
		URL:               fmt.Sprintf("https://youtube.com/shorts/%s", published.Id),
	}, nil
}

func (y *YouTube) fetchVideo(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
