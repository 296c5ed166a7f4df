package publish

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
	"autoshorts/internal/publisher"
)

type fakeVideoRepo struct {
	video       *domain.Video
	published   bool
	savedIDs    *domain.PlatformIDs
	publishedAt *time.Time
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
	if f.video.Status != from {
		return domain.ErrStatusConflict
	}
	if err := domain.CheckTransition(from, to); err != nil {
		return err
	}
	f.video.Status = to
	return nil
}

func (f *fakeVideoRepo) SaveContent(ctx context.Context, v *domain.Video) error { return nil }
func (f *fakeVideoRepo) MarkFailed(ctx context.Context, id string, from domain.VideoStatus, message string) error {
	return nil
}
func (f *fakeVideoRepo) Reset(ctx context.Context, v *domain.Video) error { return nil }

func (f *fakeVideoRepo) SavePlatformIDs(ctx context.Context, id string, ids domain.PlatformIDs) error {
	f.savedIDs = &ids
	f.video.PlatformIDs = ids
	return nil
}

func (f *fakeVideoRepo) SetPublished(ctx context.Context, id string, at time.Time) error {
	f.published = true
	f.publishedAt = &at
	return nil
}

func (f *fakeVideoRepo) SaveMetrics(ctx context.Context, id string, m domain.Metrics) error {
	return nil
}
func (f *fakeVideoRepo) ExistsForSeriesSince(ctx context.Context, seriesID string, since time.Time) (bool, error) {
	return false, nil
}
func (f *fakeVideoRepo) ListPublished(ctx context.Context) ([]domain.Video, error) { return nil, nil }

type fakeJobRepo struct {
	jobs map[string]*domain.PublishJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*domain.PublishJob{}}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *domain.PublishJob) error {
	copy := *job
	f.jobs[job.ID] = &copy
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*domain.PublishJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *job
	return &copy, nil
}

func (f *fakeJobRepo) GetActive(ctx context.Context, videoID string, platform domain.Platform) (*domain.PublishJob, error) {
	for _, job := range f.jobs {
		if job.VideoID == videoID && job.Platform == platform && !job.Terminal() {
			copy := *job
			return &copy, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobRepo) Update(ctx context.Context, job *domain.PublishJob) error {
	copy := *job
	f.jobs[job.ID] = &copy
	return nil
}

func (f *fakeJobRepo) ListByVideo(ctx context.Context, videoID string) ([]domain.PublishJob, error) {
	var out []domain.PublishJob
	for _, job := range f.jobs {
		if job.VideoID == videoID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) byPlatform(p domain.Platform) *domain.PublishJob {
	for _, job := range f.jobs {
		if job.Platform == p {
			return job
		}
	}
	return nil
}

type fakeConnRepo struct {
	conns map[domain.Platform]*domain.PlatformConnection
}

func (f *fakeConnRepo) GetActive(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformConnection, error) {
	conn, ok := f.conns[platform]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return conn, nil
}
func (f *fakeConnRepo) ListExpiring(ctx context.Context, before time.Time) ([]domain.PlatformConnection, error) {
	return nil, nil
}
func (f *fakeConnRepo) UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	return nil
}

type fakeSeriesRepo struct{ series *domain.Series }

func (f *fakeSeriesRepo) GetByID(ctx context.Context, id string) (*domain.Series, error) {
	return f.series, nil
}
func (f *fakeSeriesRepo) ListActive(ctx context.Context) ([]domain.Series, error) { return nil, nil }

type fakeUploader struct {
	platform domain.Platform
	result   *publisher.Result
	err      error
	calls    int
}

func (f *fakeUploader) Platform() domain.Platform { return f.platform }

func (f *fakeUploader) Upload(ctx context.Context, in publisher.Input) (*publisher.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeStore struct{}

func (f *fakeStore) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	return key, nil
}
func (f *fakeStore) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	return key, nil
}
func (f *fakeStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://presigned.example/" + key, nil
}

type enqueueCall struct {
	name  string
	runAt *time.Time
}

type fakeEnqueuer struct{ calls []enqueueCall }

func (f *fakeEnqueuer) Enqueue(ctx context.Context, name string, payload any) error {
	f.calls = append(f.calls, enqueueCall{name: name})
	return nil
}

func (f *fakeEnqueuer) EnqueueAt(ctx context.Context, name string, payload any, runAt time.Time) error {
	f.calls = append(f.calls, enqueueCall{name: name, runAt: &runAt})
	return nil
}

type fixture struct {
	orch     *Orchestrator
	videos   *fakeVideoRepo
	jobs     *fakeJobRepo
	conns    *fakeConnRepo
	enqueuer *fakeEnqueuer
	youtube  *fakeUploader
	tiktok   *fakeUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	videoURL := "videos/ser-1/episode.mp4"
	videos := &fakeVideoRepo{video: &domain.Video{
		ID:       "vid-1",
		SeriesID: "ser-1",
		Title:    "Episode One",
		Status:   domain.VideoStatusApproved,
		VideoURL: &videoURL,
	}}
	yt := &fakeUploader{
		platform: domain.PlatformYouTube,
		result:   &publisher.Result{PlatformContentID: "yt-1", URL: "https://youtube.com/shorts/yt-1"},
	}
	tk := &fakeUploader{
		platform: domain.PlatformTikTok,
		result:   &publisher.Result{PlatformContentID: "tk-1"},
	}
	f := &fixture{
		videos: videos,
		jobs:   newFakeJobRepo(),
		conns: &fakeConnRepo{conns: map[domain.Platform]*domain.PlatformConnection{
			domain.PlatformYouTube: {ID: "c1", AccessToken: "yt-token", IsActive: true},
			domain.PlatformTikTok:  {ID: "c2", AccessToken: "tk-token", IsActive: true},
		}},
		enqueuer: &fakeEnqueuer{},
		youtube:  yt,
		tiktok:   tk,
	}
	f.orch = New(Options{
		Videos:      videos,
		Jobs:        f.jobs,
		Connections: f.conns,
		Series:      &fakeSeriesRepo{series: &domain.Series{ID: "ser-1", UserID: "usr-1"}},
		Uploaders:   publisher.NewRegistry(yt, tk),
		Store:       &fakeStore{},
		Enqueuer:    f.enqueuer,
		Logger:      zerolog.New(os.Stderr).Level(zerolog.Disabled),
	})
	return f
}

func (f *fixture) scheduleBoth(t *testing.T) {
	t.Helper()
	err := f.orch.Schedule(context.Background(), "vid-1", []domain.Platform{domain.PlatformYouTube, domain.PlatformTikTok})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func TestScheduleCreatesJobPerPlatform(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)

	if f.videos.video.Status != domain.VideoStatusPublishing {
		t.Fatalf("video status = %q", f.videos.video.Status)
	}
	if len(f.jobs.jobs) != 2 {
		t.Fatalf("job count = %d", len(f.jobs.jobs))
	}
	if len(f.enqueuer.calls) != 2 {
		t.Fatalf("enqueue calls = %d", len(f.enqueuer.calls))
	}
	for _, c := range f.enqueuer.calls {
		if c.runAt != nil {
			t.Fatalf("immediate job dispatched with EnqueueAt")
		}
	}
}

func TestScheduleDefersFutureJobs(t *testing.T) {
	f := newFixture(t)
	later := time.Now().UTC().Add(3 * time.Hour)
	f.videos.video.ScheduledPublishAt = &later

	f.scheduleBoth(t)
	for _, c := range f.enqueuer.calls {
		if c.runAt == nil || !c.runAt.Equal(later) {
			t.Fatalf("future job not deferred: %+v", c)
		}
	}
}

func TestScheduleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)
	f.scheduleBoth(t)

	if len(f.jobs.jobs) != 2 {
		t.Fatalf("redelivered schedule created %d jobs, want 2", len(f.jobs.jobs))
	}
}

func TestScheduleRejectsUnreviewedVideo(t *testing.T) {
	f := newFixture(t)
	f.videos.video.Status = domain.VideoStatusRendering

	err := f.orch.Schedule(context.Background(), "vid-1", []domain.Platform{domain.PlatformYouTube})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestVideoPublishedOnlyWhenAllJobsPublished(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)

	ytJob := f.jobs.byPlatform(domain.PlatformYouTube)
	if err := f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID}); err != nil {
		t.Fatalf("youtube upload: %v", err)
	}
	if f.videos.video.Status != domain.VideoStatusPublishing {
		t.Fatalf("video flipped early, status = %q", f.videos.video.Status)
	}

	tkJob := f.jobs.byPlatform(domain.PlatformTikTok)
	if err := f.orch.ToPlatform(context.Background(), Request{JobID: tkJob.ID}); err != nil {
		t.Fatalf("tiktok upload: %v", err)
	}
	if f.videos.video.Status != domain.VideoStatusPublished {
		t.Fatalf("status = %q, want published", f.videos.video.Status)
	}
	if !f.videos.published {
		t.Fatal("publish time not recorded")
	}
	if f.videos.savedIDs == nil || f.videos.savedIDs.TikTokID == nil || *f.videos.savedIDs.TikTokID != "tk-1" {
		t.Fatalf("platform ids = %+v", f.videos.savedIDs)
	}
}

func TestOneJobFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)
	f.tiktok.err = errors.New("tiktok down")

	tkJob := f.jobs.byPlatform(domain.PlatformTikTok)
	tkJob.MaxRetries = 0
	f.jobs.jobs[tkJob.ID] = tkJob

	if err := f.orch.ToPlatform(context.Background(), Request{JobID: tkJob.ID}); err != nil {
		t.Fatalf("permanent failure should complete the task: %v", err)
	}
	if got := f.jobs.byPlatform(domain.PlatformTikTok).Status; got != domain.PublishStatusFailed {
		t.Fatalf("tiktok job status = %q", got)
	}

	ytJob := f.jobs.byPlatform(domain.PlatformYouTube)
	if err := f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID}); err != nil {
		t.Fatalf("youtube upload: %v", err)
	}
	if got := f.jobs.byPlatform(domain.PlatformYouTube).Status; got != domain.PublishStatusPublished {
		t.Fatalf("youtube job status = %q", got)
	}
	// one platform failed, so the video stays in publishing
	if f.videos.video.Status != domain.VideoStatusPublished && f.videos.video.Status != domain.VideoStatusPublishing {
		t.Fatalf("video status = %q", f.videos.video.Status)
	}
	if f.videos.video.Status == domain.VideoStatusPublished {
		t.Fatal("video must not be published while a job is failed")
	}
}

func TestMissingConnectionFailsPermanently(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)
	delete(f.conns.conns, domain.PlatformYouTube)

	ytJob := f.jobs.byPlatform(domain.PlatformYouTube)
	if err := f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID}); err != nil {
		t.Fatalf("missing connection should complete the task: %v", err)
	}
	got := f.jobs.byPlatform(domain.PlatformYouTube)
	if got.Status != domain.PublishStatusFailed {
		t.Fatalf("job status = %q, want failed", got.Status)
	}
	if f.youtube.calls != 0 {
		t.Fatalf("uploader called %d times without a connection", f.youtube.calls)
	}
}

func TestTransientFailureRetries(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)
	f.youtube.err = errors.New("503 from youtube")

	ytJob := f.jobs.byPlatform(domain.PlatformYouTube)
	err := f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID})
	if err == nil {
		t.Fatal("retryable failure must surface to the queue")
	}

	got := f.jobs.byPlatform(domain.PlatformYouTube)
	if got.Status != domain.PublishStatusPending {
		t.Fatalf("job status = %q, want pending for retry", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count = %d", got.RetryCount)
	}

	// attempts exhausted: the next failures park the job
	for i := 0; i < 3; i++ {
		f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID})
	}
	if got := f.jobs.byPlatform(domain.PlatformYouTube).Status; got != domain.PublishStatusFailed {
		t.Fatalf("job status = %q, want failed after retries", got)
	}
}

func TestRedeliveredTerminalJobIsNoop(t *testing.T) {
	f := newFixture(t)
	f.scheduleBoth(t)

	ytJob := f.jobs.byPlatform(domain.PlatformYouTube)
	if err := f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID}); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if err := f.orch.ToPlatform(context.Background(), Request{JobID: ytJob.ID}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if f.youtube.calls != 1 {
		t.Fatalf("uploader called %d times, want 1", f.youtube.calls)
	}
}
