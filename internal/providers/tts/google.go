package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autoshorts/internal/domain"
)

const googleTTSBaseURL = "https://texttospeech.googleapis.com/v1"

// GoogleOptions configures the fallback voice provider.
type GoogleOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Google struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogle(opts GoogleOptions) *Google {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = googleTTSBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Google{apiKey: opts.APIKey, baseURL: baseURL, client: client}
}

type googleSynthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		SSMLGender   string `json:"ssmlGender"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// languageCode widens a two-letter language into a BCP-47 region code the
// API accepts. Unknown languages fall through as "<lang>-<LANG>" which the
// API resolves for most locales.
func languageCode(language string) string {
	switch language {
	case "en":
		return "en-US"
	case "pl":
		return "pl-PL"
	case "es":
		return "es-ES"
	case "de":
		return "de-DE"
	case "fr":
		return "fr-FR"
	case "":
		return "en-US"
	default:
		return language + "-" + strings.ToUpper(language)
	}
}

func (g *Google) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("google tts: %w: missing api key", domain.ErrProviderFailure)
	}

	var payload googleSynthesizeRequest
	payload.Input.Text = text
	payload.Voice.LanguageCode = languageCode(language)
	payload.Voice.SSMLGender = "NEUTRAL"
	payload.AudioConfig.AudioEncoding = "MP3"
	payload.AudioConfig.SpeakingRate = 1.0

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("google tts: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text:synthesize?key=%s", g.baseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("google tts: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google tts: %w: status %d: %s", domain.ErrProviderFailure, resp.StatusCode, snippet)
	}

	var out googleSynthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("google tts: decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google tts: decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("google tts: %w: empty audio response", domain.ErrProviderFailure)
	}
	return audio, nil
}
