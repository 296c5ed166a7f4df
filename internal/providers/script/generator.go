package script

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"autoshorts/internal/providers/llm"
)

// Request carries everything the script generator needs for one episode.
type Request struct {
	Topic           string
	Language        string
	Tone            string
	DurationSeconds int
	// CustomPrompt overrides everything when set. Template (the series'
	// configured prompt) is interpolated with the request fields. When both
	// are empty a built-in default prompt is used.
	CustomPrompt string
	Template     string
}

// Scene is one narration segment as produced by the model.
type Scene struct {
	Text              string `json:"text"`
	VisualDescription string `json:"visual_description"`
	DurationHint      string `json:"duration_hint"`
}

// Script is the validated structured output of a generation call.
type Script struct {
	Title        string   `json:"title"`
	Hook         string   `json:"hook"`
	Scenes       []Scene  `json:"scenes"`
	CallToAction string   `json:"call_to_action"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
}

// Generator produces a full video script for a topic.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Script, error)
}

// Documented defaults applied when the model omits structural fields.
const (
	DefaultTitle        = "Untitled"
	DefaultCallToAction = "Follow for more!"
)

const systemPrompt = `You are a professional short-form video scriptwriter (shorts/reels/TikTok).
You write engaging, fast-paced scripts that grab the viewer from the first second.

Always respond with JSON of this exact shape:
{
  "title": "Video title (max 100 characters, catchy)",
  "hook": "The first 3 seconds, an intriguing question or surprising fact",
  "scenes": [
    {
      "text": "Narration text for this scene",
      "visual_description": "What should be on screen",
      "duration_hint": "approximate seconds"
    }
  ],
  "call_to_action": "Closing call to action",
  "description": "Publish description (max 300 characters)",
  "tags": ["tag1", "tag2", "tag3"]
}`

// OpenAIGenerator generates scripts through the shared chat client.
type OpenAIGenerator struct {
	client *llm.Client
}

func NewOpenAIGenerator(client *llm.Client) *OpenAIGenerator {
	return &OpenAIGenerator{client: client}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Script, error) {
	var out Script
	if err := g.client.CompleteJSON(ctx, systemPrompt, BuildPrompt(req), &out); err != nil {
		return nil, fmt.Errorf("script generation: %w", err)
	}
	ApplyDefaults(&out)
	return &out, nil
}

// BuildPrompt resolves the user prompt with the documented precedence:
// custom prompt > series template > built-in default.
func BuildPrompt(req Request) string {
	if strings.TrimSpace(req.CustomPrompt) != "" {
		return req.CustomPrompt
	}
	if strings.TrimSpace(req.Template) != "" {
		return interpolate(req.Template, req)
	}
	return fmt.Sprintf(
		"Write a %d-second short-form video script about: %s.\n"+
			"Language: %s. Tone: %s.\n"+
			"Open with an intriguing 3-second hook.\n"+
			"Include 2-4 key scenes with visual descriptions.\n"+
			"End with a call to subscribe/follow.\n"+
			"Respond in JSON.",
		req.DurationSeconds, req.Topic, req.Language, req.Tone,
	)
}

// interpolate substitutes the {topic}/{language}/{tone}/{duration}
// placeholders a series template may contain.
func interpolate(template string, req Request) string {
	return strings.NewReplacer(
		"{topic}", req.Topic,
		"{language}", req.Language,
		"{tone}", req.Tone,
		"{duration}", strconv.Itoa(req.DurationSeconds),
	).Replace(template)
}

// ApplyDefaults fills missing structural fields so a malformed model response
// never aborts the pipeline.
func ApplyDefaults(s *Script) {
	if strings.TrimSpace(s.Title) == "" {
		s.Title = DefaultTitle
	}
	if s.Scenes == nil {
		s.Scenes = []Scene{}
	}
	if strings.TrimSpace(s.CallToAction) == "" {
		s.CallToAction = DefaultCallToAction
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	for i := range s.Scenes {
		if s.Scenes[i].DurationHint == "" {
			s.Scenes[i].DurationHint = "5"
		}
	}
}
