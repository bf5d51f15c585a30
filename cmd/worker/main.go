package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"trendpulse/internal/domain/entity"
	pgRepo "trendpulse/internal/infra/adapter/persistence/postgres"
	"trendpulse/internal/infra/broadcaster"
	"trendpulse/internal/infra/db"
	"trendpulse/internal/infra/embedder"
	"trendpulse/internal/infra/fetcher"
	"trendpulse/internal/infra/queue"
	"trendpulse/internal/infra/scraper"
	"trendpulse/internal/infra/seed"
	"trendpulse/internal/infra/summarizer"
	workerPkg "trendpulse/internal/infra/worker"
	"trendpulse/internal/repository"
	"trendpulse/internal/usecase/anomaly"
	"trendpulse/internal/usecase/article"
	"trendpulse/internal/usecase/embed"
	"trendpulse/internal/usecase/ingest"
	"trendpulse/internal/usecase/summarize"
	"trendpulse/internal/usecase/trend"
)

// runAlgo identifies the clustering algorithm recorded on the bootstrap
// ClusterRun; informational only, never branched on.
const runAlgo = "online-single-pass-knn"

func waitForMigrations(logger *slog.Logger, database *sql.DB) {
	const probe = "SELECT 1 FROM sources LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

func initRedis(logger *slog.Logger) *redis.Client {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("failed to reach redis", slog.Any("error", err))
		os.Exit(1)
	}
	return client
}

func createFeedHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// createSummarizer selects the Summarizer provider named by cfg.SummarizerType.
func createSummarizer(logger *slog.Logger, cfg *workerPkg.WorkerConfig) summarize.Summarizer {
	switch cfg.SummarizerType {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Warn("ANTHROPIC_API_KEY not set, falling back to noop summarizer")
			return summarizer.NewNoOp()
		}
		return summarizer.NewClaude(apiKey)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Warn("OPENAI_API_KEY not set, falling back to noop summarizer")
			return summarizer.NewNoOp()
		}
		openaiCfg, err := summarizer.LoadOpenAIConfig()
		if err != nil {
			logger.Warn("invalid openai summarizer config, falling back to noop", slog.Any("error", err))
			return summarizer.NewNoOp()
		}
		return summarizer.NewOpenAI(apiKey, openaiCfg)
	default:
		return summarizer.NewNoOp()
	}
}

func createEmbedder() *embedder.Mistral {
	return embedder.New(embedder.Config{
		APIKey: os.Getenv("MISTRAL_API_KEY"),
	})
}

// bootstrapClusterRun resolves the embedding space backing emb and ensures it
// has an active ClusterRun, creating and activating one with the given
// default threshold if none exists yet.
func bootstrapClusterRun(ctx context.Context, spaceRepo repository.EmbeddingSpaceRepository, runRepo repository.ClusterRunRepository, emb *embedder.Mistral, threshold float64) (*entity.EmbeddingSpace, error) {
	space, err := spaceRepo.GetOrCreate(ctx, embed.SpaceName, "v1", emb.Name(), emb.Dims())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: resolve embedding space: %w", err)
	}

	if _, err := runRepo.ActiveRun(ctx, space.ID); err == nil {
		return space, nil
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("bootstrap: load active run: %w", err)
	}

	run := &entity.ClusterRun{
		SpaceID:   space.ID,
		Algo:      runAlgo,
		Params:    map[string]any{"threshold": threshold},
		StartedAt: time.Now(),
		Status:    entity.ClusterRunStatusRunning,
	}
	runID, err := runRepo.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create cluster run: %w", err)
	}
	if err := runRepo.Activate(ctx, runID); err != nil {
		return nil, fmt.Errorf("bootstrap: activate cluster run: %w", err)
	}
	return space, nil
}

// seedSources loads SOURCES_SEED_FILE, if set, and upserts its entries into
// sourceRepo. A missing or unset file is not an error; a malformed one is
// logged and skipped so a bad seed file never blocks worker startup.
func seedSources(ctx context.Context, logger *slog.Logger, sourceRepo repository.SourceRepository) {
	path := os.Getenv("SOURCES_SEED_FILE")
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read sources seed file", slog.String("path", path), slog.Any("error", err))
		return
	}
	created, err := seed.Sources(ctx, sourceRepo, data)
	if err != nil {
		logger.Warn("failed to seed sources", slog.String("path", path), slog.Any("error", err))
		return
	}
	if created > 0 {
		logger.Info("seeded sources", slog.Int("created", created))
	}
}

func main() {
	logger := initLogger()
	logger.Info("starting trend pipeline worker")

	database := initDatabase(logger)
	defer database.Close()

	redisClient := initRedis(logger)
	defer redisClient.Close()

	metrics := workerPkg.NewWorkerMetrics()
	cfg, _ := workerPkg.LoadConfigFromEnv(logger, metrics)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid worker configuration", slog.Any("error", err))
		os.Exit(1)
	}

	q := queue.New(redisClient)
	bcast := broadcaster.New(redisClient)

	sourceRepo := pgRepo.NewSourceRepo(database)
	articleRepo := pgRepo.NewArticleRepo(database)
	spaceRepo := pgRepo.NewEmbeddingSpaceRepo(database)
	embeddingRepo := pgRepo.NewArticleEmbeddingRepo(database)
	runRepo := pgRepo.NewClusterRunRepo(database)
	clusterRepo := pgRepo.NewClusterRepo(database)
	summaryRepo := pgRepo.NewClusterSummaryRepo(database)
	metricRepo := pgRepo.NewTrendMetricRepo(database)
	eventRepo := pgRepo.NewEventRepo(database)

	emb := createEmbedder()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedSources(ctx, logger, sourceRepo)

	space, err := bootstrapClusterRun(ctx, spaceRepo, runRepo, emb, cfg.ClusterThreshold)
	if err != nil {
		logger.Error("failed to bootstrap clustering run", slog.Any("error", err))
		os.Exit(1)
	}

	feedFetcher := scraper.NewRSSFetcher(createFeedHTTPClient())
	fetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid content fetch config, using defaults", slog.Any("error", err))
		fetchConfig = fetcher.DefaultConfig()
	}
	extractor := fetcher.NewReadabilityFetcher(fetchConfig)

	dispatcher := &ingest.Dispatcher{SourceRepo: sourceRepo, Queue: q}
	fetchWorker := &ingest.FetchWorker{SourceRepo: sourceRepo, FeedFetcher: feedFetcher, Queue: q}
	articleProcessor := &article.Processor{Extractor: extractor, ArticleRepo: articleRepo, Queue: q}
	embedWorker := &embed.Worker{
		ArticleRepo:        articleRepo,
		SpaceRepo:          spaceRepo,
		EmbeddingRepo:      embeddingRepo,
		ClusterRunRepo:     runRepo,
		ClusterRepo:        clusterRepo,
		ClusterSummaryRepo: summaryRepo,
		Embedder:           emb,
		Queue:              q,
	}
	trendWorker := &trend.Worker{
		ClusterRunRepo: runRepo,
		ClusterRepo:    clusterRepo,
		MetricRepo:     metricRepo,
		SpaceID:        space.ID,
	}
	detector := &anomaly.Detector{MetricRepo: metricRepo, EventRepo: eventRepo, Publisher: bcast}
	summarizeWorker := &summarize.Worker{
		ClusterRepo:   clusterRepo,
		ArticleRepo:   articleRepo,
		SummaryRepo:   summaryRepo,
		Summarizer:    createSummarizer(logger, cfg),
		Engine:        cfg.SummarizerType,
		EngineVersion: "v1",
		Lang:          "en",
	}

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startMetricsServer(ctx, logger)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	scheduler := cron.New(cron.WithLocation(loc))

	if _, err := scheduler.AddFunc(cfg.IngestSchedule, func() {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
		if _, err := dispatcher.Tick(tickCtx); err != nil {
			logger.Error("ingestion dispatcher tick failed", slog.Any("error", err))
		}
	}); err != nil {
		logger.Error("failed to schedule ingestion tick", slog.Any("error", err))
		os.Exit(1)
	}

	if _, err := scheduler.AddFunc(cfg.TrendSchedule, func() {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
		stats, err := trendWorker.Tick(tickCtx)
		if err != nil {
			logger.Error("trend metrics tick failed", slog.Any("error", err))
			return
		}
		if stats.Clusters == 0 {
			return
		}
		run, err := runRepo.ActiveRun(tickCtx, space.ID)
		if err != nil {
			logger.Error("failed to resolve active run for anomaly sweep", slog.Any("error", err))
			return
		}
		if _, err := detector.Sweep(tickCtx, run.ID); err != nil {
			logger.Error("anomaly detector sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		logger.Error("failed to schedule trend tick", slog.Any("error", err))
		os.Exit(1)
	}

	scheduler.Start()
	defer scheduler.Stop()

	consumeFetchSource(ctx, logger, q, cfg, fetchWorker)
	consumeProcessArticle(ctx, logger, q, cfg, articleProcessor)
	consumeEmbedCluster(ctx, logger, q, cfg, embedWorker)
	consumeSummarizeCluster(ctx, logger, q, cfg, summarizeWorker)

	healthServer.SetReady(true)
	logger.Info("worker ready",
		slog.String("ingest_schedule", cfg.IngestSchedule),
		slog.String("trend_schedule", cfg.TrendSchedule),
		slog.Int64("space_id", space.ID))

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")
}

// consumeFetchSource starts a background goroutine that blocks on
// JobFetchSource jobs and hands each to fetchWorker.
func consumeFetchSource(ctx context.Context, logger *slog.Logger, q *queue.Queue, cfg *workerPkg.WorkerConfig, w *ingest.FetchWorker) {
	go consumeLoop(ctx, logger, q, queue.JobFetchSource, cfg.QueuePollInterval, cfg.JobTimeout, func(jobCtx context.Context, job queue.Job) error {
		var payload queue.FetchSourcePayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := w.ProcessFetchJob(jobCtx, payload.SourceID)
		return err
	})
}

func consumeProcessArticle(ctx context.Context, logger *slog.Logger, q *queue.Queue, cfg *workerPkg.WorkerConfig, p *article.Processor) {
	go consumeLoop(ctx, logger, q, queue.JobProcessArticle, cfg.QueuePollInterval, cfg.JobTimeout, func(jobCtx context.Context, job queue.Job) error {
		var payload queue.ProcessArticlePayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := p.Process(jobCtx, payload.URL, payload.SourceID)
		return err
	})
}

func consumeEmbedCluster(ctx context.Context, logger *slog.Logger, q *queue.Queue, cfg *workerPkg.WorkerConfig, w *embed.Worker) {
	go consumeLoop(ctx, logger, q, queue.JobEmbedCluster, cfg.QueuePollInterval, cfg.JobTimeout, func(jobCtx context.Context, job queue.Job) error {
		var payload queue.EmbedClusterPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := w.ProcessEmbedJob(jobCtx, payload.ArticleID)
		return err
	})
}

func consumeSummarizeCluster(ctx context.Context, logger *slog.Logger, q *queue.Queue, cfg *workerPkg.WorkerConfig, w *summarize.Worker) {
	go consumeLoop(ctx, logger, q, queue.JobSummarizeCluster, cfg.QueuePollInterval, cfg.JobTimeout, func(jobCtx context.Context, job queue.Job) error {
		var payload queue.SummarizeClusterPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := w.ProcessSummarizeJob(jobCtx, payload.ClusterID)
		return err
	})
}

// consumeLoop repeatedly dequeues jobType until ctx is cancelled, running
// handle with a bounded context per job. A handler error is logged, not
// fatal: the loop moves on to the next job.
func consumeLoop(ctx context.Context, logger *slog.Logger, q *queue.Queue, jobType queue.JobType, poll, jobTimeout time.Duration, handle func(context.Context, queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := q.Dequeue(ctx, jobType, poll)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error("failed to dequeue job", slog.String("job_type", string(jobType)), slog.Any("error", err))
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		if err := handle(jobCtx, job); err != nil {
			logger.Error("job handler failed",
				slog.String("job_type", string(jobType)),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
		}
		cancel()
	}
}
