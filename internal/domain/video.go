package domain

import (
	"fmt"
	"time"
)

// VideoStatus enumerates pipeline lifecycle states for a video.
type VideoStatus string

const (
	VideoStatusPending          VideoStatus = "pending"
	VideoStatusGeneratingHook   VideoStatus = "generating_hook"
	VideoStatusGeneratingScript VideoStatus = "generating_script"
	VideoStatusGeneratingVoice  VideoStatus = "generating_voice"
	VideoStatusFetchingMedia    VideoStatus = "fetching_media"
	VideoStatusRendering        VideoStatus = "rendering"
	VideoStatusReadyForReview   VideoStatus = "ready_for_review"
	VideoStatusApproved         VideoStatus = "approved"
	VideoStatusPublishing       VideoStatus = "publishing"
	VideoStatusPublished        VideoStatus = "published"
	VideoStatusFailed           VideoStatus = "failed"
	VideoStatusCancelled        VideoStatus = "cancelled"
)

// videoTransitions is the complete edge set of the video state machine.
// Any transition not listed here is rejected.
var videoTransitions = map[VideoStatus][]VideoStatus{
	VideoStatusPending:          {VideoStatusGeneratingHook, VideoStatusFailed, VideoStatusCancelled},
	VideoStatusGeneratingHook:   {VideoStatusGeneratingScript, VideoStatusFailed},
	VideoStatusGeneratingScript: {VideoStatusGeneratingVoice, VideoStatusFailed},
	VideoStatusGeneratingVoice:  {VideoStatusFetchingMedia, VideoStatusFailed},
	VideoStatusFetchingMedia:    {VideoStatusRendering, VideoStatusFailed},
	VideoStatusRendering:        {VideoStatusReadyForReview, VideoStatusFailed},
	VideoStatusReadyForReview:   {VideoStatusApproved, VideoStatusPending, VideoStatusCancelled},
	VideoStatusApproved:         {VideoStatusPublishing, VideoStatusCancelled},
	VideoStatusPublishing:       {VideoStatusPublished},
	VideoStatusPublished:        {},
	VideoStatusFailed:           {VideoStatusPending},
	VideoStatusCancelled:        {VideoStatusPending},
}

// ValidVideoStatus reports whether s is one of the twelve enumerated states.
func ValidVideoStatus(s VideoStatus) bool {
	_, ok := videoTransitions[s]
	return ok
}

// CanTransition reports whether the edge from -> to exists in the state machine.
func CanTransition(from, to VideoStatus) bool {
	for _, next := range videoTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition naming both states when the
// edge from -> to is not part of the state machine.
func CheckTransition(from, to VideoStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	return nil
}

// Scene is one narration segment of a video with its visual assignment.
type Scene struct {
	Text              string  `json:"text"`
	VisualDescription string  `json:"visual_description"`
	DurationHint      string  `json:"duration_hint"`
	StartTime         float64 `json:"start_time"`
	EndTime           float64 `json:"end_time"`
	MediaURL          *string `json:"media_url"`
	Subtitle          string  `json:"subtitle"`
}

// VisualStyle configures the look of a rendered video.
type VisualStyle struct {
	Font             string `json:"font"`
	FontSize         int    `json:"font_size"`
	FontColor        string `json:"font_color"`
	SubtitlePosition string `json:"subtitle_position"`
	Transition       string `json:"transition"`
	BackgroundMusic  bool   `json:"background_music"`
	BrandingText     string `json:"branding_text"`
}

// DefaultVisualStyle returns the documented style defaults.
func DefaultVisualStyle() VisualStyle {
	return VisualStyle{
		Font:             "Montserrat-Bold",
		FontSize:         48,
		FontColor:        "#FFFFFF",
		SubtitlePosition: "bottom",
		Transition:       "fade",
		BackgroundMusic:  true,
	}
}

// Metrics aggregates platform statistics for a published video. Populated
// asynchronously by the analytics sync, never by the pipeline.
type Metrics struct {
	Views            int64   `json:"views"`
	Likes            int64   `json:"likes"`
	Comments         int64   `json:"comments"`
	Shares           int64   `json:"shares"`
	WatchTimeSeconds int64   `json:"watch_time_seconds"`
	AvgViewDuration  float64 `json:"avg_view_duration"`
	RetentionRate    float64 `json:"retention_rate"`
}

// PlatformIDs records the content identifiers returned by each platform.
type PlatformIDs struct {
	YouTubeID   *string `json:"youtube_id"`
	TikTokID    *string `json:"tiktok_id"`
	InstagramID *string `json:"instagram_id"`
}

// Video is one episode of a series moving through the generation pipeline.
type Video struct {
	ID            string
	SeriesID      string
	EpisodeNumber int

	Title       string
	HookText    string
	Script      string
	Description string
	Tags        []string

	Status       VideoStatus
	ErrorMessage *string
	RetryCount   int

	VoiceURL             *string
	VoiceDurationSeconds *float64
	VideoURL             *string
	ThumbnailURL         *string

	Scenes      []Scene
	Metrics     Metrics
	PlatformIDs PlatformIDs

	ScheduledPublishAt *time.Time
	PublishedAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Editable reports whether content fields may still be changed by the user.
func (v *Video) Editable() bool {
	return v.Status == VideoStatusReadyForReview || v.Status == VideoStatusApproved
}

// Regenerable reports whether the video may be reset to PENDING for a fresh
// pipeline run.
func (v *Video) Regenerable() bool {
	switch v.Status {
	case VideoStatusFailed, VideoStatusReadyForReview, VideoStatusCancelled:
		return true
	}
	return false
}

// Regenerate resets the video for another pipeline run: status back to
// PENDING, error cleared, retry counter incremented. Returns
// ErrInvalidTransition when the current state has no edge back to PENDING.
func (v *Video) Regenerate() error {
	if !v.Regenerable() {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, v.Status, VideoStatusPending)
	}
	v.Status = VideoStatusPending
	v.ErrorMessage = nil
	v.RetryCount++
	return nil
}

// Approve moves a reviewed video into the APPROVED state.
func (v *Video) Approve(scheduledAt *time.Time) error {
	if err := CheckTransition(v.Status, VideoStatusApproved); err != nil {
		return err
	}
	v.Status = VideoStatusApproved
	if scheduledAt != nil {
		v.ScheduledPublishAt = scheduledAt
	}
	return nil
}
