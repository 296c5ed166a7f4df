package stockmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const pexelsBaseURL = "https://api.pexels.com/v1"

// Provider looks up a stock image for a visual description. A nil result
// with nil error means no match; the renderer substitutes a placeholder.
type Provider interface {
	FindImage(ctx context.Context, query string) (*string, error)
}

// PexelsOptions configures the Pexels image search client.
type PexelsOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Pexels struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewPexels(opts PexelsOptions) *Pexels {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = pexelsBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Pexels{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}
}

type pexelsSearchResponse struct {
	Photos []struct {
		Src struct {
			Large2x string `json:"large2x"`
			Large   string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// FindImage returns the best portrait match for the query, or nil when
// the search comes up empty or the API misbehaves. Media lookup failures
// never fail a render.
func (p *Pexels) FindImage(ctx context.Context, query string) (*string, error) {
	if p.apiKey == "" || query == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", "1")
	q.Set("orientation", "portrait")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/search?%s", p.baseURL, q.Encode()), nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("query", query).Msg("pexels search failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		p.logger.Warn().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("pexels search returned error status")
		return nil, nil
	}

	var out pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		p.logger.Warn().Err(err).Msg("pexels response decode failed")
		return nil, nil
	}
	if len(out.Photos) == 0 {
		return nil, nil
	}

	src := out.Photos[0].Src.Large2x
	if src == "" {
		src = out.Photos[0].Src.Large
	}
	if src == "" {
		return nil, nil
	}
	return &src, nil
}
