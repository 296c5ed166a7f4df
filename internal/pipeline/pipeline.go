package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/providers/hook"
	"autoshorts/internal/providers/script"
	"autoshorts/internal/providers/stockmedia"
	"autoshorts/internal/providers/tts"
	"autoshorts/internal/renderer"
	"autoshorts/internal/storage"
)

// Visual assignments for the synthetic hook and call-to-action scenes that
// wrap the scripted content.
const (
	hookVisual = "dramatic attention-grabbing visual"
	ctaVisual  = "subscribe follow button animation"
)

// VideoRenderer is the slice of the renderer the orchestrator needs.
type VideoRenderer interface {
	Render(ctx context.Context, in renderer.Input) (*renderer.Result, error)
}

// Request identifies the video to generate plus optional per-run overrides
// carried in the task payload.
type Request struct {
	VideoID        string `json:"video_id"`
	TopicOverride  string `json:"topic_override,omitempty"`
	PromptOverride string `json:"prompt_override,omitempty"`
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Videos   domain.VideoRepository
	Series   domain.SeriesRepository
	Hooks    hook.Generator
	Scripts  script.Generator
	Voice    tts.Synthesizer
	Media    stockmedia.Provider
	Renderer VideoRenderer
	Store    storage.Store
	WorkRoot string
	Logger   zerolog.Logger
}

// Orchestrator drives one video from PENDING to READY_FOR_REVIEW through
// the generation stages. Each stage entry is a compare-and-swap status
// write, so a video cancelled mid-run stops the pipeline at the next stage
// boundary instead of being overwritten.
type Orchestrator struct {
	videos   domain.VideoRepository
	series   domain.SeriesRepository
	hooks    hook.Generator
	scripts  script.Generator
	voice    tts.Synthesizer
	media    stockmedia.Provider
	renderer VideoRenderer
	store    storage.Store
	workRoot string
	logger   zerolog.Logger
}

func New(opts Options) *Orchestrator {
	workRoot := opts.WorkRoot
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &Orchestrator{
		videos:   opts.Videos,
		series:   opts.Series,
		hooks:    opts.Hooks,
		scripts:  opts.Scripts,
		voice:    opts.Voice,
		media:    opts.Media,
		renderer: opts.Renderer,
		store:    opts.Store,
		workRoot: workRoot,
		logger:   opts.Logger,
	}
}

// Run executes the full generation pipeline for one video. A failure in any
// stage marks the video FAILED with the stage error; a status conflict
// (concurrent cancel or duplicate delivery) aborts without marking anything.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	video, err := o.videos.GetByID(ctx, req.VideoID)
	if err != nil {
		return fmt.Errorf("pipeline: load video %s: %w", req.VideoID, err)
	}
	if video.Status != domain.VideoStatusPending {
		o.logger.Info().
			Str("video_id", video.ID).
			Str("status", string(video.Status)).
			Msg("video not pending, skipping pipeline run")
		return nil
	}

	series, err := o.series.GetByID(ctx, video.SeriesID)
	if err != nil {
		return fmt.Errorf("pipeline: load series %s: %w", video.SeriesID, err)
	}

	workDir, err := os.MkdirTemp(o.workRoot, "video_"+video.ID+"_")
	if err != nil {
		return fmt.Errorf("pipeline: create work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			o.logger.Warn().Err(rmErr).Str("work_dir", workDir).Msg("work dir cleanup failed")
		}
	}()

	topic := series.Topic
	if req.TopicOverride != "" {
		topic = req.TopicOverride
	}
	language := series.NormalizedLanguage()

	// Hook stage.
	if err := o.enter(ctx, video, domain.VideoStatusGeneratingHook); err != nil {
		return settle(err)
	}
	hookText, err := o.generateHook(ctx, topic, language)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	video.HookText = hookText

	// Script stage.
	if err := o.enter(ctx, video, domain.VideoStatusGeneratingScript); err != nil {
		return settle(err)
	}
	scr, err := o.scripts.Generate(ctx, script.Request{
		Topic:           topic,
		Language:        language,
		Tone:            series.Tone,
		DurationSeconds: series.TargetDurationSeconds,
		CustomPrompt:    req.PromptOverride,
		Template:        series.PromptTemplate,
	})
	if err != nil {
		return o.fail(ctx, video, err)
	}
	if video.HookText == "" {
		video.HookText = scr.Hook
	}
	video.Title = scr.Title
	video.Description = scr.Description
	video.Tags = scr.Tags
	video.Scenes = assembleScenes(video.HookText, scr)
	video.Script = fullScript(video.HookText, scr)
	if len(video.Scenes) == 0 {
		return o.fail(ctx, video, errors.New("script produced no scenes"))
	}

	// Voice stage.
	if err := o.enter(ctx, video, domain.VideoStatusGeneratingVoice); err != nil {
		return settle(err)
	}
	audio, err := o.voice.Synthesize(ctx, narration(video.Scenes), language)
	if err != nil {
		return o.fail(ctx, video, err)
	}
	audioPath := filepath.Join(workDir, "voice.mp3")
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return o.fail(ctx, video, fmt.Errorf("write voice file: %w", err))
	}
	voiceKey := storage.Key("audio/"+series.ID, "mp3")
	voiceURL, err := o.store.PutFile(ctx, audioPath, voiceKey, storage.ContentTypeForExt("mp3"))
	if err != nil {
		return o.fail(ctx, video, fmt.Errorf("store voice: %w", err))
	}
	video.VoiceURL = &voiceURL

	// Media stage. Lookup misses leave MediaURL nil; the renderer
	// substitutes placeholders.
	if err := o.enter(ctx, video, domain.VideoStatusFetchingMedia); err != nil {
		return settle(err)
	}
	for i := range video.Scenes {
		url, err := o.media.FindImage(ctx, mediaQuery(video.Scenes[i]))
		if err == nil && url != nil {
			video.Scenes[i].MediaURL = url
		}
	}

	// Render stage.
	if err := o.enter(ctx, video, domain.VideoStatusRendering); err != nil {
		return settle(err)
	}
	rendered, err := o.renderer.Render(ctx, renderer.Input{
		WorkDir:   workDir,
		AudioPath: audioPath,
		Scenes:    video.Scenes,
		Style:     series.VisualStyle,
	})
	if err != nil {
		return o.fail(ctx, video, err)
	}
	video.VoiceDurationSeconds = &rendered.DurationSeconds

	videoKey := storage.Key("videos/"+series.ID, "mp4")
	videoURL, err := o.store.PutFile(ctx, rendered.VideoPath, videoKey, storage.ContentTypeForExt("mp4"))
	if err != nil {
		return o.fail(ctx, video, fmt.Errorf("store video: %w", err))
	}
	video.VideoURL = &videoURL

	if err := o.videos.SaveContent(ctx, video); err != nil {
		return o.fail(ctx, video, fmt.Errorf("save content: %w", err))
	}

	if err := o.enter(ctx, video, domain.VideoStatusReadyForReview); err != nil {
		return settle(err)
	}

	o.logger.Info().
		Str("video_id", video.ID).
		Str("series_id", series.ID).
		Str("title", video.Title).
		Msg("video ready for review")
	return nil
}

// errRunAborted signals a concurrent status change (typically a cancel).
// The run stops cleanly without marking the video failed.
var errRunAborted = errors.New("pipeline run aborted")

// enter advances the video into the next stage with a CAS write.
func (o *Orchestrator) enter(ctx context.Context, video *domain.Video, to domain.VideoStatus) error {
	if err := o.videos.TransitionStatus(ctx, video.ID, video.Status, to); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			o.logger.Warn().
				Str("video_id", video.ID).
				Str("expected", string(video.Status)).
				Str("target", string(to)).
				Msg("status changed concurrently, aborting pipeline run")
			return errRunAborted
		}
		return fmt.Errorf("pipeline: enter %s: %w", to, err)
	}
	video.Status = to
	return nil
}

// settle converts the abort sentinel into a clean task completion so the
// queue does not retry a run that lost a status race.
func settle(err error) error {
	if errors.Is(err, errRunAborted) {
		return nil
	}
	return err
}

// fail records the stage error against the video's current state.
func (o *Orchestrator) fail(ctx context.Context, video *domain.Video, cause error) error {
	if markErr := o.videos.MarkFailed(ctx, video.ID, video.Status, cause.Error()); markErr != nil {
		o.logger.Error().Err(markErr).Str("video_id", video.ID).Msg("mark failed did not persist")
	}
	return fmt.Errorf("pipeline: stage %s: %w", video.Status, cause)
}

func (o *Orchestrator) generateHook(ctx context.Context, topic, language string) (string, error) {
	res, err := o.hooks.Generate(ctx, topic, language)
	if err != nil {
		return "", err
	}
	return res.Best(), nil
}

// assembleScenes wraps the scripted scenes with the hook opener and the
// call-to-action closer when present.
func assembleScenes(hookText string, scr *script.Script) []domain.Scene {
	out := make([]domain.Scene, 0, len(scr.Scenes)+2)
	if hookText != "" {
		out = append(out, domain.Scene{
			Text:              hookText,
			VisualDescription: hookVisual,
			DurationHint:      "3",
		})
	}
	for _, s := range scr.Scenes {
		out = append(out, domain.Scene{
			Text:              s.Text,
			VisualDescription: s.VisualDescription,
			DurationHint:      s.DurationHint,
		})
	}
	if scr.CallToAction != "" {
		out = append(out, domain.Scene{
			Text:              scr.CallToAction,
			VisualDescription: ctaVisual,
			DurationHint:      "3",
		})
	}
	return out
}

const maxMediaQueryLen = 80

// mediaQuery builds the stock photo search term for a scene: the visual
// description when present, otherwise the narration text, capped so long
// scripted lines stay searchable.
func mediaQuery(s domain.Scene) string {
	q := strings.TrimSpace(s.VisualDescription)
	if q == "" {
		q = strings.TrimSpace(s.Text)
	}
	if len(q) > maxMediaQueryLen {
		q = q[:maxMediaQueryLen]
	}
	return q
}

// narration joins all scene text into the single string sent to the voice
// provider.
func narration(scenes []domain.Scene) string {
	parts := make([]string, 0, len(scenes))
	for _, s := range scenes {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// fullScript renders the human-readable script stored on the video record.
func fullScript(hookText string, scr *script.Script) string {
	var b strings.Builder
	if hookText != "" {
		fmt.Fprintf(&b, "[HOOK]\n%s\n\n", hookText)
	}
	for i, s := range scr.Scenes {
		fmt.Fprintf(&b, "[SCENE %d]\n%s\n\n", i+1, s.Text)
	}
	if scr.CallToAction != "" {
		fmt.Fprintf(&b, "[CTA]\n%s\n", scr.CallToAction)
	}
	return strings.TrimRight(b.String(), "\n")
}
