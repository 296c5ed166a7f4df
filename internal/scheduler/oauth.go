package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"autoshorts/internal/domain"
)

// OAuthRefresher renews access tokens through the platform's OAuth token
// endpoint. Only Google-backed connections (YouTube) are refreshable today;
// TikTok and Instagram tokens are long-lived and re-issued on reconnect.
type OAuthRefresher struct {
	youtube oauth2.Config
}

func NewOAuthRefresher(youtubeClientID, youtubeClientSecret string) *OAuthRefresher {
	return &OAuthRefresher{
		youtube: oauth2.Config{
			ClientID:     youtubeClientID,
			ClientSecret: youtubeClientSecret,
			Endpoint:     google.Endpoint,
		},
	}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, conn *domain.PlatformConnection) (string, time.Time, error) {
	if conn.Platform != domain.PlatformYouTube {
		return "", time.Time{}, fmt.Errorf("refresh not supported for platform %q", conn.Platform)
	}
	if conn.RefreshToken == nil || *conn.RefreshToken == "" {
		return "", time.Time{}, fmt.Errorf("connection %s has no refresh token", conn.ID)
	}

	src := r.youtube.TokenSource(ctx, &oauth2.Token{RefreshToken: *conn.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh %s token: %w", conn.Platform, err)
	}
	return token.AccessToken, token.Expiry, nil
}
