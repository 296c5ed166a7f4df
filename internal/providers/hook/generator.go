package hook

import (
	"context"
	"fmt"

	"autoshorts/internal/providers/llm"
)

// Candidate is a single generated hook variant.
type Candidate struct {
	Text      string  `json:"text"`
	Technique string  `json:"technique"`
	Score     float64 `json:"score"`
}

// Result is the full generation output. RecommendedIndex points at the
// candidate the model scored highest, but callers must treat it as
// untrusted and use Best.
type Result struct {
	Hooks            []Candidate `json:"hooks"`
	RecommendedIndex int         `json:"recommended_index"`
}

// Best returns the recommended hook text, clamping the index into range.
// An empty candidate list yields the empty string so the pipeline can
// fall back to the script's own hook.
func (r *Result) Best() string {
	if len(r.Hooks) == 0 {
		return ""
	}
	i := r.RecommendedIndex
	if i < 0 {
		i = 0
	}
	if i >= len(r.Hooks) {
		i = len(r.Hooks) - 1
	}
	return r.Hooks[i].Text
}

// Generator produces opening-hook candidates for a topic.
type Generator interface {
	Generate(ctx context.Context, topic, language string) (*Result, error)
}

const systemPrompt = `You are an expert in short-form video hooks. A hook is the first 1-3
seconds that decides whether the viewer keeps watching.

Generate 5 hook variants using different techniques: a surprising fact,
a provocative question, a bold claim, a curiosity gap, a direct address.

Always respond with JSON of this exact shape:
{
  "hooks": [
    {"text": "hook text", "technique": "technique name", "score": 8.5}
  ],
  "recommended_index": 0
}
Score each hook from 1 to 10 and set recommended_index to the best one.`

// OpenAIGenerator generates hooks through the shared chat client.
type OpenAIGenerator struct {
	client *llm.Client
}

func NewOpenAIGenerator(client *llm.Client) *OpenAIGenerator {
	return &OpenAIGenerator{client: client}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, topic, language string) (*Result, error) {
	user := fmt.Sprintf("Topic: %s\nLanguage: %s\nGenerate the 5 hooks now.", topic, language)
	var out Result
	if err := g.client.CompleteJSON(ctx, systemPrompt, user, &out); err != nil {
		return nil, fmt.Errorf("hook generation: %w", err)
	}
	return &out, nil
}
