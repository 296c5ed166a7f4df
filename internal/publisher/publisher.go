package publisher

import (
	"context"

	"autoshorts/internal/domain"
)

// Input is the uniform upload contract every platform uploader accepts.
// VideoURL is a presigned, publicly fetchable link to the rendered mp4.
type Input struct {
	VideoURL    string
	Title       string
	Description string
	Tags        []string
	AccessToken string
}

// Result identifies the published content on the platform.
type Result struct {
	PlatformContentID string
	URL               string
}

// Uploader publishes one video to one platform.
type Uploader interface {
	Platform() domain.Platform
	Upload(ctx context.Context, in Input) (*Result, error)
}

// Registry maps platforms to their uploaders.
type Registry map[domain.Platform]Uploader

func NewRegistry(uploaders ...Uploader) Registry {
	r := make(Registry, len(uploaders))
	for _, u := range uploaders {
		r[u.Platform()] = u
	}
	return r
}

func (r Registry) For(platform domain.Platform) (Uploader, bool) {
	u, ok := r[platform]
	return u, ok
}
