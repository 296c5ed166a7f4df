package tts

import (
	"context"

	"github.com/rs/zerolog"
)

// Synthesizer converts narration text into spoken audio bytes (mp3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Chain tries each synthesizer in order and returns the first success.
// The pipeline wires ElevenLabs first and Google second.
type Chain struct {
	synths []Synthesizer
	logger zerolog.Logger
}

func NewChain(logger zerolog.Logger, synths ...Synthesizer) *Chain {
	return &Chain{synths: synths, logger: logger}
}

func (c *Chain) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	var lastErr error
	for i, s := range c.synths {
		audio, err := s.Synthesize(ctx, text, language)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("provider_index", i).Msg("tts provider failed, trying next")
	}
	return nil, lastErr
}
