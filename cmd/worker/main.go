package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"autoshorts/internal/adapter/repo"
	"autoshorts/internal/analytics"
	"autoshorts/internal/db"
	"autoshorts/internal/infra"
	"autoshorts/internal/pipeline"
	"autoshorts/internal/providers/hook"
	"autoshorts/internal/providers/llm"
	"autoshorts/internal/providers/script"
	"autoshorts/internal/providers/stockmedia"
	"autoshorts/internal/providers/tts"
	"autoshorts/internal/publish"
	"autoshorts/internal/publisher"
	"autoshorts/internal/queue"
	"autoshorts/internal/renderer"
	"autoshorts/internal/storage"
)

type taskWorker struct {
	queue     *queue.Queue
	pipeline  *pipeline.Orchestrator
	publish   *publish.Orchestrator
	analytics *analytics.Sync
	logger    infra.Logger
	poll      time.Duration
	tasks     infra.WorkerFile
	timeouts  struct {
		generate time.Duration
		upload   time.Duration
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	wf, err := infra.LoadWorkerFile(os.Getenv("WORKER_FILE"))
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid worker file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: schema migration failed")
	}

	store, err := selectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	videos := repo.NewVideoRepository(pool)
	seriesRepo := repo.NewSeriesRepository(pool)
	jobs := repo.NewPublishJobRepository(pool)
	connections := repo.NewConnectionRepository(pool)

	llmClient, err := llm.NewClient(llm.Options{
		APIKey:        cfg.OpenAIAPIKey,
		Model:         cfg.OpenAIModel,
		FallbackModel: cfg.OpenAIFallbackModel,
		BaseURL:       cfg.OpenAIBaseURL,
		MaxTokens:     cfg.OpenAIMaxTokens,
		Temperature:   cfg.OpenAITemperature,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure llm client")
	}

	voice := tts.NewChain(logger,
		tts.NewElevenLabs(tts.ElevenLabsOptions{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsDefaultVoice,
			ModelID: cfg.ElevenLabsModelID,
		}),
		tts.NewGoogle(tts.GoogleOptions{APIKey: cfg.GoogleTTSAPIKey}),
	)

	pipelineOrch := pipeline.New(pipeline.Options{
		Videos:  videos,
		Series:  seriesRepo,
		Hooks:   hook.NewOpenAIGenerator(llmClient),
		Scripts: script.NewOpenAIGenerator(llmClient),
		Voice:   voice,
		Media:   stockmedia.NewPexels(stockmedia.PexelsOptions{APIKey: cfg.PexelsAPIKey, Logger: logger}),
		Renderer: renderer.New(renderer.Options{
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
			Logger:      logger,
		}),
		Store:    store,
		WorkRoot: wf.WorkDir,
		Logger:   logger,
	})

	q := queue.New(pool, logger, cfg.TaskMaxAttempts)

	publishOrch := publish.New(publish.Options{
		Videos:      videos,
		Jobs:        jobs,
		Connections: connections,
		Series:      seriesRepo,
		Uploaders: publisher.NewRegistry(
			publisher.NewYouTube(nil),
			publisher.NewTikTok(publisher.TikTokOptions{}),
			publisher.NewInstagram(publisher.InstagramOptions{}),
		),
		Store:    store,
		Enqueuer: q,
		Logger:   logger,
	})

	analyticsSync := analytics.New(analytics.Options{
		Videos:      videos,
		Series:      seriesRepo,
		Connections: connections,
		Fetchers:    []analytics.Fetcher{analytics.NewYouTubeFetcher()},
		Logger:      logger,
	})

	worker := &taskWorker{
		queue:     q,
		pipeline:  pipelineOrch,
		publish:   publishOrch,
		analytics: analyticsSync,
		logger:    logger,
		poll:      cfg.TaskPollInterval,
		tasks:     wf,
	}
	worker.timeouts.generate = cfg.GenerationTimeout + cfg.RenderTimeout
	worker.timeouts.upload = cfg.UploadTimeout

	srv := infra.NewHTTPServer(cfg, healthRouter(pool))
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("worker: health endpoint listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker: health endpoint stopped")
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < wf.Concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			worker.run(ctx, n)
		}(i)
	}
	logger.Info().Int("concurrency", wf.Concurrency).Msg("worker: started")

	<-ctx.Done()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("worker: health endpoint shutdown failed")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *taskWorker) run(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.queue.Claim(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrNoTask) && !errors.Is(err, context.Canceled) {
				w.logger.Error().Err(err).Int("loop", n).Msg("worker: claim failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.poll):
			}
			continue
		}

		w.handle(ctx, task)
	}
}

func (w *taskWorker) handle(ctx context.Context, task *queue.Task) {
	w.logger.Info().Str("task_id", task.ID).Str("task", task.Name).Int("attempt", task.Attempts).Msg("worker: picked task")

	if err := w.dispatch(ctx, task); err != nil {
		if failErr := w.queue.Fail(ctx, task, err); failErr != nil {
			w.logger.Error().Err(failErr).Str("task_id", task.ID).Msg("worker: fail record did not persist")
		}
		return
	}
	if err := w.queue.Complete(ctx, task.ID); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("worker: complete did not persist")
	}
}

func (w *taskWorker) dispatch(ctx context.Context, task *queue.Task) error {
	switch task.Name {
	case queue.TaskVideoGenerate:
		if !w.tasks.TaskNames.Pipeline {
			return fmt.Errorf("task %s disabled on this worker", task.Name)
		}
		var req pipeline.Request
		if err := json.Unmarshal(task.Payload, &req); err != nil {
			return fmt.Errorf("decode generation payload: %w", err)
		}
		runCtx, cancel := context.WithTimeout(ctx, w.timeouts.generate)
		defer cancel()
		return w.pipeline.Run(runCtx, req)

	case queue.TaskPublishPlatform:
		if !w.tasks.TaskNames.Publish {
			return fmt.Errorf("task %s disabled on this worker", task.Name)
		}
		var req publish.Request
		if err := json.Unmarshal(task.Payload, &req); err != nil {
			return fmt.Errorf("decode publish payload: %w", err)
		}
		runCtx, cancel := context.WithTimeout(ctx, w.timeouts.upload)
		defer cancel()
		return w.publish.ToPlatform(runCtx, req)

	case queue.TaskAnalyticsSync:
		if !w.tasks.TaskNames.Analytics {
			return fmt.Errorf("task %s disabled on this worker", task.Name)
		}
		return w.analytics.Run(ctx)

	default:
		return fmt.Errorf("unsupported task %q", task.Name)
	}
}

func selectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.Store, error) {
	if cfg.S3Endpoint != "" {
		return storage.NewMinioStore(ctx, cfg, logger)
	}

	path := cfg.StoragePath
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	logger.Warn().Str("path", path).Msg("worker: no s3 endpoint configured, using filesystem store")
	return storage.NewFileStore(path)
}

func healthRouter(pinger interface {
	Ping(ctx context.Context) error
}) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return r
}
