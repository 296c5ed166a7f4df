package domain

import (
	"fmt"
	"time"
)

// Platform identifies an external publishing target.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// KnownPlatform reports whether p is a supported publishing target.
func KnownPlatform(p Platform) bool {
	switch p {
	case PlatformYouTube, PlatformTikTok, PlatformInstagram:
		return true
	}
	return false
}

// PublishStatus enumerates publish job lifecycle states.
type PublishStatus string

const (
	PublishStatusPending    PublishStatus = "pending"
	PublishStatusUploading  PublishStatus = "uploading"
	PublishStatusProcessing PublishStatus = "processing"
	PublishStatusPublished  PublishStatus = "published"
	PublishStatusFailed     PublishStatus = "failed"
)

var publishTransitions = map[PublishStatus][]PublishStatus{
	PublishStatusPending: {PublishStatusUploading, PublishStatusFailed},

	// uploading falls back to pending when a retryable attempt fails
	PublishStatusUploading:  {PublishStatusProcessing, PublishStatusPublished, PublishStatusFailed, PublishStatusPending},
	PublishStatusProcessing: {PublishStatusPublished, PublishStatusFailed},
	PublishStatusPublished:  {},
	PublishStatusFailed:     {},
}

// CheckPublishTransition validates an edge of the publish job state machine.
func CheckPublishTransition(from, to PublishStatus) error {
	for _, next := range publishTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
}

// PublishJob tracks one platform's publication attempt for one video. At most
// one non-terminal job exists per (video, platform); a failed job may be
// superseded by a new one on retry.
type PublishJob struct {
	ID       string
	VideoID  string
	Platform Platform

	Status            PublishStatus
	PlatformContentID *string
	PlatformURL       *string

	ScheduledAt *time.Time
	PublishedAt *time.Time

	ErrorMessage *string
	RetryCount   int
	MaxRetries   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job can no longer change state.
func (j *PublishJob) Terminal() bool {
	return j.Status == PublishStatusPublished || j.Status == PublishStatusFailed
}

// Due reports whether the job should be dispatched at the given instant.
func (j *PublishJob) Due(now time.Time) bool {
	return j.ScheduledAt == nil || !j.ScheduledAt.After(now)
}

// Retryable reports whether a failed attempt may be retried.
func (j *PublishJob) Retryable() bool {
	return j.RetryCount < j.MaxRetries
}
