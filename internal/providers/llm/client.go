package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"autoshorts/internal/infra"
)

// Options controls how the OpenAI chat client is configured.
type Options struct {
	APIKey        string
	Model         string
	FallbackModel string
	BaseURL       string
	MaxTokens     int
	Temperature   float64
	HTTPClient    *http.Client
	Logger        *infra.Logger
}

// Client is a minimal chat-completions client producing structured JSON.
// Transient failures are retried with exponential backoff; malformed output
// from the primary model triggers a single attempt against the cheaper
// fallback model.
type Client struct {
	apiKey        string
	model         string
	fallbackModel string
	baseURL       string
	maxTokens     int
	temperature   float64
	client        *http.Client
	logger        *infra.Logger
}

const (
	defaultTimeout  = 45 * time.Second
	defaultBaseURL  = "https://api.openai.com/v1"
	completionTries = 3
)

// ErrMalformedOutput marks a response that was not valid JSON even after the
// fallback model attempt.
var ErrMalformedOutput = errors.New("llm: malformed model output")

// retryBaseWait is the first backoff step between completion attempts.
// Overridden in tests.
var retryBaseWait = 2 * time.Second

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("llm: api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		model:         model,
		fallbackModel: strings.TrimSpace(opts.FallbackModel),
		baseURL:       baseURL,
		maxTokens:     opts.MaxTokens,
		temperature:   opts.Temperature,
		client:        client,
		logger:        opts.Logger,
	}, nil
}

// CompleteJSON asks the model for a JSON object and decodes it into out.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, out any) error {
	content, err := c.completeWithRetry(ctx, c.model, system, user)
	if err != nil {
		return err
	}
	if jsonErr := json.Unmarshal([]byte(extractJSON(content)), out); jsonErr == nil {
		return nil
	}
	if c.fallbackModel == "" || c.fallbackModel == c.model {
		return ErrMalformedOutput
	}
	if c.logger != nil {
		c.logger.Warn().Str("model", c.model).Msg("llm: invalid json, retrying with fallback model")
	}
	content, err = c.complete(ctx, c.fallbackModel, system, user)
	if err != nil {
		return err
	}
	if jsonErr := json.Unmarshal([]byte(extractJSON(content)), out); jsonErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, jsonErr)
	}
	return nil
}

func (c *Client) completeWithRetry(ctx context.Context, model, system, user string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= completionTries; attempt++ {
		content, err := c.complete(ctx, model, system, user)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < completionTries {
			wait := retryBaseWait << uint(attempt-1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("llm: completion failed after %d attempts: %w", completionTries, lastErr)
}

func (c *Client) complete(ctx context.Context, model, system, user string) (string, error) {
	payload := chatRequest{
		Model:       model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		ResponseFormat: &chatFormat{
			Type: "json_object",
		},
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm: status %d from %s", resp.StatusCode, model)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

// extractJSON strips markdown code fences some models wrap around JSON.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
