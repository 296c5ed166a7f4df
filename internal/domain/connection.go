package domain

import "time"

// PlatformConnection stores the OAuth-derived tokens authorizing uploads to
// one external platform on behalf of one user.
type PlatformConnection struct {
	ID               string
	UserID           string
	Platform         Platform
	PlatformUserID   *string
	PlatformUsername *string
	ChannelName      *string

	AccessToken    string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	Scopes         string

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiringWithin reports whether the access token expires before now+window
// and a refresh token is available to renew it.
func (c *PlatformConnection) ExpiringWithin(now time.Time, window time.Duration) bool {
	if c.TokenExpiresAt == nil || c.RefreshToken == nil {
		return false
	}
	return !c.TokenExpiresAt.After(now.Add(window))
}
