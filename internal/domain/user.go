package domain

import "time"

// User is the quota-bearing owner of series. Authentication and billing live
// outside the core; only the fields the pipeline needs are modeled here.
type User struct {
	ID       string
	Email    string
	FullName string
	IsActive bool

	MaxSeries                int
	MaxVideosPerMonth        int
	VideosGeneratedThisMonth int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMonthlyQuota reports whether another video may be generated this month.
func (u *User) HasMonthlyQuota() bool {
	return u.VideosGeneratedThisMonth < u.MaxVideosPerMonth
}
