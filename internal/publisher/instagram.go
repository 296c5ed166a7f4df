package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoshorts/internal/domain"
)

const instagramBaseURL = "https://graph.facebook.com/v19.0"

// Instagram publishes Reels through the Graph API container flow: create a
// media container pointing at the video URL, poll until processed, then
// publish the container.
type Instagram struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

type InstagramOptions struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func NewInstagram(opts InstagramOptions) *Instagram {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = instagramBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60 * time.Second
	}
	return &Instagram{baseURL: baseURL, client: client, pollInterval: pollInterval, pollTimeout: pollTimeout}
}

func (i *Instagram) Platform() domain.Platform { return domain.PlatformInstagram }

// Upload expects AccessToken in the form "<ig-user-id>:<token>" since the
// Graph API addresses media endpoints by account id.
func (i *Instagram) Upload(ctx context.Context, in Input) (*Result, error) {
	userID, token, ok := strings.Cut(in.AccessToken, ":")
	if !ok || userID == "" || token == "" {
		return nil, fmt.Errorf("instagram: %w", domain.ErrNoConnection)
	}

	containerID, err := i.createContainer(ctx, userID, token, in)
	if err != nil {
		return nil, err
	}
	if err := i.waitForContainer(ctx, containerID, token); err != nil {
		return nil, err
	}
	mediaID, err := i.publishContainer(ctx, userID, token, containerID)
	if err != nil {
		return nil, err
	}

	return &Result{
		PlatformContentID: mediaID,
		URL:               fmt.Sprintf("https://www.instagram.com/reel/%s/", mediaID),
	}, nil
}

type graphIDResponse struct {
	ID    string `json:"id"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (i *Instagram) createContainer(ctx context.Context, userID, token string, in Input) (string, error) {
	form := url.Values{}
	form.Set("media_type", "REELS")
	form.Set("video_url", in.VideoURL)
	form.Set("caption", buildCaption(in))
	form.Set("access_token", token)

	var out graphIDResponse
	if err := i.postForm(ctx, fmt.Sprintf("%s/%s/media", i.baseURL, userID), form, &out); err != nil {
		return "", fmt.Errorf("instagram: create container: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("instagram: %w: create container: %s", domain.ErrProviderFailure, out.Error.Message)
	}
	return out.ID, nil
}

type containerStatusResponse struct {
	StatusCode string `json:"status_code"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (i *Instagram) waitForContainer(ctx context.Context, containerID, token string) error {
	deadline := time.Now().Add(i.pollTimeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", i.baseURL, containerID, url.QueryEscape(token)), nil)
		if err != nil {
			return fmt.Errorf("instagram: build status request: %w", err)
		}
		resp, err := i.client.Do(req)
		if err != nil {
			return fmt.Errorf("instagram: container status: %w", err)
		}
		var out containerStatusResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("instagram: decode container status: %w", err)
		}

		switch out.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return fmt.Errorf("instagram: %w: container processing failed: %s", domain.ErrProviderFailure, out.Error.Message)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("instagram: %w: container not ready after %s", domain.ErrProviderFailure, i.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(i.pollInterval):
		}
	}
}

func (i *Instagram) publishContainer(ctx context.Context, userID, token, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", token)

	var out graphIDResponse
	if err := i.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", i.baseURL, userID), form, &out); err != nil {
		return "", fmt.Errorf("instagram: publish container: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("instagram: %w: publish container: %s", domain.ErrProviderFailure, out.Error.Message)
	}
	return out.ID, nil
}

func (i *Instagram) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func buildCaption(in Input) string {
	caption := in.Title
	if in.Description != "" {
		caption += "\n\n" + in.Description
	}
	for _, tag := range in.Tags {
		caption += " #" + strings.ReplaceAll(tag, " ", "")
	}
	return caption
}
