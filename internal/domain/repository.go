package domain

import (
	"context"
	"time"
)

// VideoRepository defines persistence for video records.
type VideoRepository interface {
	// CreateEpisode inserts the video and, in the same transaction, increments
	// the series episode counter and the owner's monthly counter. All three
	// succeed or fail as a unit.
	CreateEpisode(ctx context.Context, video *Video) error
	GetByID(ctx context.Context, id string) (*Video, error)
	// TransitionStatus performs a compare-and-swap status write. It returns
	// ErrStatusConflict when the record is no longer in the expected state,
	// which is how late-finishing stages are prevented from overwriting an
	// out-of-band CANCELLED.
	TransitionStatus(ctx context.Context, id string, from, to VideoStatus) error
	// SaveContent persists the content fields accumulated by pipeline stages
	// (title, script, scenes, locators). It never touches status.
	SaveContent(ctx context.Context, video *Video) error
	// MarkFailed records a stage error: status from -> FAILED with the message.
	MarkFailed(ctx context.Context, id string, from VideoStatus, message string) error
	// Reset persists a regenerate: status, cleared error, bumped retry count.
	Reset(ctx context.Context, video *Video) error
	SavePlatformIDs(ctx context.Context, id string, ids PlatformIDs) error
	SetPublished(ctx context.Context, id string, at time.Time) error
	SaveMetrics(ctx context.Context, id string, metrics Metrics) error
	ExistsForSeriesSince(ctx context.Context, seriesID string, since time.Time) (bool, error)
	ListPublished(ctx context.Context) ([]Video, error)
}

// PublishJobRepository defines persistence for publish jobs.
type PublishJobRepository interface {
	Create(ctx context.Context, job *PublishJob) error
	GetByID(ctx context.Context, id string) (*PublishJob, error)
	// GetActive returns the single non-terminal job for the pair, or
	// ErrNotFound.
	GetActive(ctx context.Context, videoID string, platform Platform) (*PublishJob, error)
	Update(ctx context.Context, job *PublishJob) error
	ListByVideo(ctx context.Context, videoID string) ([]PublishJob, error)
}

// SeriesRepository reads series configuration.
type SeriesRepository interface {
	GetByID(ctx context.Context, id string) (*Series, error)
	ListActive(ctx context.Context) ([]Series, error)
}

// ConnectionRepository manages platform OAuth connections.
type ConnectionRepository interface {
	GetActive(ctx context.Context, userID string, platform Platform) (*PlatformConnection, error)
	ListExpiring(ctx context.Context, before time.Time) ([]PlatformConnection, error)
	UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error
}

// UserRepository reads quota state and handles the monthly reset.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	ResetMonthlyCounters(ctx context.Context) error
}
