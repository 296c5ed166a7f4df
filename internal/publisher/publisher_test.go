package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"autoshorts/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestRegistryLookup(t *testing.T) {
	tk := NewTikTok(TikTokOptions{})
	reg := NewRegistry(tk)

	got, ok := reg.For(domain.PlatformTikTok)
	if !ok || got != tk {
		t.Fatalf("lookup failed: %v %v", got, ok)
	}
	if _, ok := reg.For(domain.PlatformYouTube); ok {
		t.Fatal("unexpected uploader for unregistered platform")
	}
}

func TestTikTokTwoPhaseUpload(t *testing.T) {
	var steps []string
	var gotRange string
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/video.mp4"):
			steps = append(steps, "fetch")
			return jsonResponse(http.StatusOK, "0123456789"), nil
		case strings.Contains(r.URL.Path, "/inbox/video/init/"):
			steps = append(steps, "init")
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Fatalf("authorization = %q", got)
			}
			var payload tiktokInitRequest
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode init: %v", err)
			}
			if payload.SourceInfo.VideoSize != 10 {
				t.Fatalf("video size = %d", payload.SourceInfo.VideoSize)
			}
			return jsonResponse(http.StatusOK, `{"data":{"publish_id":"pub-1","upload_url":"https://upload.example/put"}}`), nil
		case r.Method == http.MethodPut:
			steps = append(steps, "put")
			gotRange = r.Header.Get("Content-Range")
			return jsonResponse(http.StatusOK, "{}"), nil
		}
		return nil, fmt.Errorf("unexpected request %s %s", r.Method, r.URL)
	})}

	tk := NewTikTok(TikTokOptions{HTTPClient: client})
	res, err := tk.Upload(context.Background(), Input{
		VideoURL:    "https://store.example/video.mp4",
		AccessToken: "tok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PlatformContentID != "pub-1" {
		t.Fatalf("content id = %q", res.PlatformContentID)
	}
	if gotRange != "bytes 0-9/10" {
		t.Fatalf("content-range = %q", gotRange)
	}
	if want := []string{"fetch", "init", "put"}; strings.Join(steps, ",") != strings.Join(want, ",") {
		t.Fatalf("steps = %v", steps)
	}
}

func TestTikTokMissingToken(t *testing.T) {
	tk := NewTikTok(TikTokOptions{})
	if _, err := tk.Upload(context.Background(), Input{VideoURL: "u"}); !errors.Is(err, domain.ErrNoConnection) {
		t.Fatalf("err = %v, want ErrNoConnection", err)
	}
}

func TestInstagramContainerFlow(t *testing.T) {
	statusCalls := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ig-user/media"):
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.PostForm.Get("media_type"); got != "REELS" {
				t.Fatalf("media_type = %q", got)
			}
			return jsonResponse(http.StatusOK, `{"id":"container-1"}`), nil
		case strings.HasSuffix(r.URL.Path, "/container-1"):
			statusCalls++
			if statusCalls < 2 {
				return jsonResponse(http.StatusOK, `{"status_code":"IN_PROGRESS"}`), nil
			}
			return jsonResponse(http.StatusOK, `{"status_code":"FINISHED"}`), nil
		case strings.HasSuffix(r.URL.Path, "/ig-user/media_publish"):
			return jsonResponse(http.StatusOK, `{"id":"media-9"}`), nil
		}
		return nil, fmt.Errorf("unexpected request %s %s", r.Method, r.URL)
	})}

	ig := NewInstagram(InstagramOptions{
		HTTPClient:   client,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	})
	res, err := ig.Upload(context.Background(), Input{
		VideoURL:    "https://store.example/video.mp4",
		Title:       "t",
		AccessToken: "ig-user:token",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PlatformContentID != "media-9" {
		t.Fatalf("content id = %q", res.PlatformContentID)
	}
	if statusCalls < 2 {
		t.Fatalf("status polled %d times, want at least 2", statusCalls)
	}
}

func TestInstagramContainerError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ig-user/media"):
			return jsonResponse(http.StatusOK, `{"id":"container-1"}`), nil
		case strings.HasSuffix(r.URL.Path, "/container-1"):
			return jsonResponse(http.StatusOK, `{"status_code":"ERROR","error":{"message":"bad codec"}}`), nil
		}
		return nil, fmt.Errorf("unexpected request %s %s", r.Method, r.URL)
	})}

	ig := NewInstagram(InstagramOptions{HTTPClient: client, PollInterval: time.Millisecond, PollTimeout: time.Second})
	_, err := ig.Upload(context.Background(), Input{VideoURL: "u", AccessToken: "ig-user:token"})
	if err == nil || !strings.Contains(err.Error(), "bad codec") {
		t.Fatalf("err = %v, want container error", err)
	}
}

func TestInstagramMalformedToken(t *testing.T) {
	ig := NewInstagram(InstagramOptions{})
	if _, err := ig.Upload(context.Background(), Input{AccessToken: "no-separator"}); !errors.Is(err, domain.ErrNoConnection) {
		t.Fatalf("err = %v, want ErrNoConnection", err)
	}
}

func TestBuildCaption(t *testing.T) {
	got := buildCaption(Input{
		Title:       "My Reel",
		Description: "About things",
		Tags:        []string{"go lang", "video"},
	})
	if !strings.Contains(got, "My Reel") || !strings.Contains(got, "#golang") || !strings.Contains(got, "#video") {
		t.Fatalf("caption = %q", got)
	}
}

func TestYouTubeMissingToken(t *testing.T) {
	yt := NewYouTube(nil)
	if _, err := yt.Upload(context.Background(), Input{VideoURL: "u"}); !errors.Is(err, domain.ErrNoConnection) {
		t.Fatalf("err = %v, want ErrNoConnection", err)
	}
}
