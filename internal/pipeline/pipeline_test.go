package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/providers/hook"
	"autoshorts/internal/providers/script"
	"autoshorts/internal/renderer"
)

type fakeVideoRepo struct {
	video       *domain.Video
	transitions []string
	conflictAt  domain.VideoStatus
	failedMsg   string
	saved       bool
}

func (f *fakeVideoRepo) CreateEpisode(ctx context.Context, v *domain.Video) error { return nil }

func (f *fakeVideoRepo) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	if f.video == nil || f.video.ID != id {
		return nil, domain.ErrNotFound
	}
	copy := *f.video
	return &copy, nil
}

func (f *fakeVideoRepo) TransitionStatus(ctx context.Context, id string, from, to domain.VideoStatus) error {
	if f.conflictAt != "" && to == f.conflictAt {
		return domain.ErrStatusConflict
	}
	if err := domain.CheckTransition(from, to); err != nil {
		return err
	}
	f.transitions = append(f.transitions, fmt.Sprintf("%s->%s", from, to))
	f.video.Status = to
	return nil
}

func (f *fakeVideoRepo) SaveContent(ctx context.Context, v *domain.Video) error {
	f.saved = true
	f.video.Title = v.Title
	f.video.Script = v.Script
	f.video.Scenes = v.Scenes
	f.video.VoiceURL = v.VoiceURL
	f.video.VideoURL = v.VideoURL
	return nil
}

func (f *fakeVideoRepo) MarkFailed(ctx context.Context, id string, from domain.VideoStatus, message string) error {
	f.failedMsg = message
	f.video.Status = domain.VideoStatusFailed
	return nil
}

func (f *fakeVideoRepo) Reset(ctx context.Context, v *domain.Video) error { return nil }
func (f *fakeVideoRepo) SavePlatformIDs(ctx context.Context, id string, ids domain.PlatformIDs) error {
	return nil
}
func (f *fakeVideoRepo) SetPublished(ctx context.Context, id string, at time.Time) error { return nil }
func (f *fakeVideoRepo) SaveMetrics(ctx context.Context, id string, m domain.Metrics) error {
	return nil
}
func (f *fakeVideoRepo) ExistsForSeriesSince(ctx context.Context, seriesID string, since time.Time) (bool, error) {
	return false, nil
}
func (f *fakeVideoRepo) ListPublished(ctx context.Context) ([]domain.Video, error) { return nil, nil }

type fakeSeriesRepo struct{ series *domain.Series }

func (f *fakeSeriesRepo) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	if f.series == nil || f.series.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.series, nil
}
func (f *fakeSeriesRepo) ListActive(ctx context.Context) ([]domain.Series, error) { return nil, nil }

type fakeHooks struct {
	result *hook.Result
	err    error
}

func (f *fakeHooks) Generate(ctx context.Context, topic, language string) (*hook.Result, error) {
	return f.result, f.err
}

type fakeScripts struct {
	script  *script.Script
	err     error
	lastReq script.Request
}

func (f *fakeScripts) Generate(ctx context.Context, req script.Request) (*script.Script, error) {
	f.lastReq = req
	return f.script, f.err
}

type fakeVoice struct {
	err      error
	lastText string
}

func (f *fakeVoice) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio"), nil
}

type fakeMedia struct {
	url     *string
	queries []string
}

func (f *fakeMedia) FindImage(ctx context.Context, query string) (*string, error) {
	f.queries = append(f.queries, query)
	return f.url, nil
}

type fakeRenderer struct {
	err       error
	lastInput renderer.Input
}

func (f *fakeRenderer) Render(ctx context.Context, in renderer.Input) (*renderer.Result, error) {
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &renderer.Result{VideoPath: in.WorkDir + "/final.mp4", DurationSeconds: 42.5}, nil
}

type fakeStore struct{ keys []string }

func (f *fakeStore) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	f.keys = append(f.keys, key)
	return "stored://" + key, nil
}
func (f *fakeStore) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	f.keys = append(f.keys, key)
	return "stored://" + key, nil
}
func (f *fakeStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://presigned.example/" + key, nil
}

type fixture struct {
	orch     *Orchestrator
	videos   *fakeVideoRepo
	scripts  *fakeScripts
	voice    *fakeVoice
	media    *fakeMedia
	renderer *fakeRenderer
	store    *fakeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	videos := &fakeVideoRepo{video: &domain.Video{
		ID:       "vid-1",
		SeriesID: "ser-1",
		Status:   domain.VideoStatusPending,
	}}
	seriesRepo := &fakeSeriesRepo{series: &domain.Series{
		ID:                    "ser-1",
		UserID:                "usr-1",
		Topic:                 "ocean facts",
		Language:              "en",
		Tone:                  "energetic",
		TargetDurationSeconds: 45,
		VisualStyle:           domain.DefaultVisualStyle(),
	}}
	scripts := &fakeScripts{script: &script.Script{
		Title: "Deep Sea Secrets",
		Hook:  "script hook",
		Scenes: []script.Scene{
			{Text: "The ocean is deep.", VisualDescription: "underwater canyon"},
			{Text: "Creatures glow down there.", VisualDescription: "bioluminescent fish"},
		},
		CallToAction: "Follow for more!",
		Tags:         []string{"ocean"},
	}}
	voice := &fakeVoice{}
	media := &fakeMedia{}
	rend := &fakeRenderer{}
	store := &fakeStore{}

	orch := New(Options{
		Videos:   videos,
		Series:   seriesRepo,
		Hooks:    &fakeHooks{result: &hook.Result{Hooks: []hook.Candidate{{Text: "Did you know?"}}}},
		Scripts:  scripts,
		Voice:    voice,
		Media:    media,
		Renderer: rend,
		Store:    store,
		WorkRoot: t.TempDir(),
		Logger:   zerolog.New(os.Stderr).Level(zerolog.Disabled),
	})
	return &fixture{orch: orch, videos: videos, scripts: scripts, voice: voice, media: media, renderer: rend, store: store}
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.Run(context.Background(), Request{VideoID: "vid-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"pending->generating_hook",
		"generating_hook->generating_script",
		"generating_script->generating_voice",
		"generating_voice->fetching_media",
		"fetching_media->rendering",
		"rendering->ready_for_review",
	}
	if got := strings.Join(f.videos.transitions, ","); got != strings.Join(want, ",") {
		t.Fatalf("transitions = %v", f.videos.transitions)
	}
	if !f.videos.saved {
		t.Fatal("content not saved")
	}
	if f.videos.video.Status != domain.VideoStatusReadyForReview {
		t.Fatalf("status = %q", f.videos.video.Status)
	}
	// hook opener + 2 scenes + CTA closer, in that order
	wantScenes := []string{
		"Did you know?",
		"The ocean is deep.",
		"Creatures glow down there.",
		"Follow for more!",
	}
	if got := len(f.videos.video.Scenes); got != len(wantScenes) {
		t.Fatalf("scene count = %d, want %d", got, len(wantScenes))
	}
	for i, want := range wantScenes {
		if got := f.videos.video.Scenes[i].Text; got != want {
			t.Fatalf("scene %d = %q, want %q", i, got, want)
		}
	}
	if !strings.HasPrefix(f.voice.lastText, "Did you know?") {
		t.Fatalf("narration does not open with hook: %q", f.voice.lastText)
	}
	if len(f.store.keys) != 2 ||
		!strings.HasPrefix(f.store.keys[0], "audio/ser-1/") ||
		!strings.HasPrefix(f.store.keys[1], "videos/ser-1/") {
		t.Fatalf("store keys = %v", f.store.keys)
	}
}

func TestRunSkipsNonPendingVideo(t *testing.T) {
	f := newFixture(t)
	f.videos.video.Status = domain.VideoStatusPublished

	if err := f.orch.Run(context.Background(), Request{VideoID: "vid-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.videos.transitions) != 0 {
		t.Fatalf("transitions = %v, want none", f.videos.transitions)
	}
}

func TestRunStageFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.voice.err = errors.New("tts exploded")

	err := f.orch.Run(context.Background(), Request{VideoID: "vid-1"})
	if err == nil || !strings.Contains(err.Error(), "tts exploded") {
		t.Fatalf("err = %v", err)
	}
	if f.videos.video.Status != domain.VideoStatusFailed {
		t.Fatalf("status = %q, want failed", f.videos.video.Status)
	}
	if !strings.Contains(f.videos.failedMsg, "tts exploded") {
		t.Fatalf("failure message = %q", f.videos.failedMsg)
	}
}

func TestRunAbortsOnConcurrentCancel(t *testing.T) {
	f := newFixture(t)
	f.videos.conflictAt = domain.VideoStatusGeneratingVoice

	if err := f.orch.Run(context.Background(), Request{VideoID: "vid-1"}); err != nil {
		t.Fatalf("aborted run must complete cleanly, got %v", err)
	}
	if f.videos.failedMsg != "" {
		t.Fatalf("aborted run must not mark failed, got %q", f.videos.failedMsg)
	}
	if f.videos.saved {
		t.Fatal("aborted run must not save content")
	}
}

func TestRunPromptAndTopicOverrides(t *testing.T) {
	f := newFixture(t)
	err := f.orch.Run(context.Background(), Request{
		VideoID:        "vid-1",
		TopicOverride:  "volcano facts",
		PromptOverride: "custom prompt text",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.scripts.lastReq.Topic != "volcano facts" {
		t.Fatalf("topic = %q", f.scripts.lastReq.Topic)
	}
	if f.scripts.lastReq.CustomPrompt != "custom prompt text" {
		t.Fatalf("custom prompt = %q", f.scripts.lastReq.CustomPrompt)
	}
}

func TestRunFallsBackToScriptHook(t *testing.T) {
	f := newFixture(t)
	orch := *f.orch
	orch.hooks = &fakeHooks{result: &hook.Result{}}

	if err := orch.Run(context.Background(), Request{VideoID: "vid-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.videos.video.Scenes[0].Text != "script hook" {
		t.Fatalf("first scene = %q, want script hook fallback", f.videos.video.Scenes[0].Text)
	}
}

func TestMediaQueryFallsBackToSceneText(t *testing.T) {
	f := newFixture(t)
	f.scripts.script.Scenes[0].VisualDescription = ""

	if err := f.orch.Run(context.Background(), Request{VideoID: "vid-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		hookVisual,
		"The ocean is deep.",
		"bioluminescent fish",
		ctaVisual,
	}
	if got := strings.Join(f.media.queries, "|"); got != strings.Join(want, "|") {
		t.Fatalf("media queries = %v, want %v", f.media.queries, want)
	}
}

func TestMediaQueryTruncatesLongText(t *testing.T) {
	long := strings.Repeat("wave ", 30)
	got := mediaQuery(domain.Scene{Text: long})
	if len(got) != maxMediaQueryLen {
		t.Fatalf("query length = %d, want %d", len(got), maxMediaQueryLen)
	}
	if !strings.HasPrefix(long, got) {
		t.Fatalf("query %q is not a prefix of the scene text", got)
	}
}

func TestFullScriptLayout(t *testing.T) {
	scr := &script.Script{
		Scenes:       []script.Scene{{Text: "one"}, {Text: "two"}},
		CallToAction: "follow",
	}
	got := fullScript("the hook", scr)
	for _, part := range []string{"[HOOK]\nthe hook", "[SCENE 1]\none", "[SCENE 2]\ntwo", "[CTA]\nfollow"} {
		if !strings.Contains(got, part) {
			t.Fatalf("script missing %q:\n%s", part, got)
		}
	}
}
