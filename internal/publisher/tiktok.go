package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"autoshorts/internal/domain"
)

const tiktokBaseURL = "https://open.tiktokapis.com/v2"

// TikTok uploads through the two-phase inbox flow: init returns an upload
// URL, the video bytes go there with a Content-Range header, and the clip
// lands in the creator's inbox for final posting.
type TikTok struct {
	baseURL string
	client  *http.Client
}

type TikTokOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewTikTok(opts TikTokOptions) *TikTok {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = tiktokBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &TikTok{baseURL: baseURL, client: client}
}

func (t *TikTok) Platform() domain.Platform { return domain.PlatformTikTok }

type tiktokInitRequest struct {
	SourceInfo struct {
		Source          string `json:"source"`
		VideoSize       int64  `json:"video_size"`
		ChunkSize       int64  `json:"chunk_size"`
		TotalChunkCount int    `json:"total_chunk_count"`
	} `json:"source_info"`
}

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (t *TikTok) Upload(ctx context.Context, in Input) (*Result, error) {
	if in.AccessToken == "" {
		return nil, fmt.Errorf("tiktok: %w", domain.ErrNoConnection)
	}

	video, err := fetchBytes(ctx, t.client, in.VideoURL)
	if err != nil {
		return nil, fmt.Errorf("tiktok: fetch rendered video: %w", err)
	}

	init, err := t.initUpload(ctx, in.AccessToken, int64(len(video)))
	if err != nil {
		return nil, err
	}

	if err := t.putVideo(ctx, init.Data.UploadURL, video); err != nil {
		return nil, err
	}

	return &Result{PlatformContentID: init.Data.PublishID}, nil
}

func (t *TikTok) initUpload(ctx context.Context, token string, size int64) (*tiktokInitResponse, error) {
	var payload tiktokInitRequest
	payload.SourceInfo.Source = "FILE_UPLOAD"
	payload.SourceInfo.VideoSize = size
	payload.SourceInfo.ChunkSize = size
	payload.SourceInfo.TotalChunkCount = 1

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tiktok: marshal init: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/post/publish/inbox/video/init/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tiktok: build init request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tiktok: init upload: %w", err)
	}
	defer resp.Body.Close()

	var out tiktokInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tiktok: decode init response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Data.UploadURL == "" {
		return nil, fmt.Errorf("tiktok: %w: init status %d code %q: %s",
			domain.ErrProviderFailure, resp.StatusCode, out.Error.Code, out.Error.Message)
	}
	return &out, nil
}

func (t *TikTok) putVideo(ctx context.Context, uploadURL string, video []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(video))
	if err != nil {
		return fmt.Errorf("tiktok: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(video)-1, len(video)))
	req.ContentLength = int64(len(video))

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tiktok: upload video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tiktok: %w: upload status %d: %s", domain.ErrProviderFailure, resp.StatusCode, snippet)
	}
	return nil
}

func fetchBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
