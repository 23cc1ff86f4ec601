package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fancai/orchestrator/internal/admission"
	"github.com/fancai/orchestrator/internal/config"
	"github.com/fancai/orchestrator/internal/imagequeue"
	"github.com/fancai/orchestrator/internal/ingest"
	"github.com/fancai/orchestrator/internal/jobs"
	"github.com/fancai/orchestrator/internal/metrics"
	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/pipeline"
	"github.com/fancai/orchestrator/internal/processors"
	"github.com/fancai/orchestrator/internal/processors/keyword"
	"github.com/fancai/orchestrator/internal/processors/llmproc"
	"github.com/fancai/orchestrator/internal/queue"
	"github.com/fancai/orchestrator/internal/storage/coordstore"
	"github.com/fancai/orchestrator/internal/storage/postgres"
	"github.com/fancai/orchestrator/internal/svcctx"
	"github.com/fancai/orchestrator/internal/sysinfo"
)

// defaultPoolConcurrency sizes the three executor pools by queue class.
// spec.md names the heavy/normal/light split but leaves per-class
// concurrency unspecified (same Open Question as RouteQueueClass's
// threshold choice, internal/jobs/router.go): heavy books hold a worker
// goroutine for longer, so fewer of them run at once.
var defaultPoolConcurrency = map[jobs.QueueClass]int{
	jobs.QueueHeavy:  1,
	jobs.QueueNormal: 2,
	jobs.QueueLight:  4,
}

// resolveConfigPath mirrors the teacher's serve.go precedence: an
// explicit --config flag, else ./config.yaml, else
// $HOME/.orchestrator/config.yaml (writing a fresh default there if
// nothing exists yet).
func resolveConfigPath(logger *slog.Logger) string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	dir := filepath.Join(home, ".orchestrator")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("could not create config directory, falling back to ./config.yaml", "err", err)
		return "config.yaml"
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("creating default config", "path", path)
		if err := config.WriteDefault(path); err != nil {
			logger.Warn("failed to write default config", "err", err)
		}
	}
	return path
}

// buildServices assembles the full internal/svcctx.Services graph from
// configuration. It is shared by every subcommand; lighter-weight
// commands (enqueue, cancel, stats) only use a slice of the returned
// Services, but the construction cost (two connection pools) is the
// same either way.
func buildServices(ctx context.Context, logger *slog.Logger) (*svcctx.Services, func(), error) {
	cfgMgr, err := config.NewManager(resolveConfigPath(logger))
	if err != nil {
		return nil, nil, failStartup(1, fmt.Errorf("load config: %w", err))
	}
	cfgMgr.WatchConfig()
	cfg := cfgMgr.Get()

	db, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Logger: logger})
	if err != nil {
		return nil, nil, failStartup(3, fmt.Errorf("connect to postgres: %w", err))
	}

	coordStore, err := coordstore.New(ctx, coordstore.Config{
		Addr:     cfg.Coordinate.Addr,
		Password: cfg.Coordinate.Password,
		DB:       cfg.Coordinate.DB,
		Logger:   logger,
	})
	if err != nil {
		db.Close()
		return nil, nil, failStartup(2, fmt.Errorf("connect to coordination store: %w", err))
	}

	books := postgres.NewBookStore(db)
	chapters := postgres.NewChapterStore(db)
	descs := postgres.NewDescriptionStore(db)
	images := postgres.NewImageStore(db)
	jobStore := postgres.NewJobStore(db)
	configStore := config.NewStore(db.Pool)

	if err := config.SeedDefaults(ctx, configStore, logger); err != nil {
		logger.Warn("failed to seed default runtime config", "err", err)
	}

	sampler := sysinfo.NewSampler()
	rollout := admission.NewConfigRollout(configStore, cfg.RolloutPercentDefault)

	gate := admission.New(coordStore, admission.Config{
		MaxConcurrentGlobal:  cfg.MaxConcurrentGlobal,
		MaxConcurrentPerUser: cfg.MaxConcurrentPerUser,
		CooldownPerBook:      time.Duration(cfg.CooldownSecondsPerBook) * time.Second,
		MaxMemoryPercent:     cfg.MaxMemoryPercent,
		MaxCPUPercent:        cfg.MaxCPUPercent,
		MinFreeMemoryMB:      cfg.MinFreeMemoryMB,
		AgePromotionInterval: time.Duration(cfg.AgePromotionInterval) * time.Second,
	}, adaptResourceSample(sampler), nil, rollout, logger)

	pq := queue.NewPriorityQueue(coordStore)
	dispatcher := queue.NewDispatcher(pq, gate,
		time.Duration(cfg.WakeTickSeconds)*time.Second,
		time.Duration(cfg.QueueTimeoutSeconds)*time.Second,
		logger)

	registry := processors.NewRegistry(logger)
	registry.RegisterFactory("keyword", keyword.NewFromProcessorConfig)
	registry.RegisterFactory("llm", llmproc.NewFromProcessorConfig)
	if err := registry.Reload(ctx, toProcessorConfigs(cfg.Processors)); err != nil {
		logger.Warn("processor registry reload reported an error", "err", err)
	}

	factory := pipeline.NewStrategyFactory(cfg.MaxParallelProcessors, cfg.ConsensusThreshold, logger)

	resolveOwner := func(ctx context.Context, chapterID string) (string, error) {
		ch, err := chapters.Get(ctx, chapterID)
		if err != nil {
			return "", err
		}
		book, err := books.Get(ctx, ch.BookID)
		if err != nil {
			return "", err
		}
		return book.OwnerID, nil
	}
	imgQueue := imagequeue.NewDispatcher(imagequeue.NewLogSink(logger), resolveOwner, logger)

	pl := pipeline.New(factory, descs, imgQueue, pipeline.Config{
		ImageTopK:          cfg.ImageTopK,
		ImagePriorityFloor: cfg.ImagePriorityThreshold,
	}, logger)
	mode := pipeline.ProcessingMode(cfg.ProcessingMode)
	metricsRecorder := metrics.NewRecorder(db)
	chapterAdapter := pipeline.NewChapterAdapter(pl, registry, mode, metricsRecorder)

	pools := make(map[jobs.QueueClass]*jobs.Pool, len(defaultPoolConcurrency))
	for class, concurrency := range defaultPoolConcurrency {
		pools[class] = jobs.NewPool(jobs.PoolConfig{
			Class:               class,
			Concurrency:         concurrency,
			SoftTimeLimit:       time.Duration(cfg.SoftTimeLimitSeconds) * time.Second,
			HardTimeLimit:       time.Duration(cfg.HardTimeLimitSeconds) * time.Second,
			MaxTasksPerChild:    cfg.MaxTasksPerChild,
			MaxMemoryPerChildMB: cfg.MaxMemoryPerChildMB,
			MaxMemoryPercent:    cfg.MaxMemoryPercent,
			MaxCPUPercent:       cfg.MaxCPUPercent,
			SkipServicePages:    cfg.SkipServicePages,
			Retry:               jobs.DefaultRetryPolicy(),
			Jobs:                jobStore,
			Books:               books,
			Chapters:            chapters,
			Processor:           chapterAdapter,
			Slots:               gate,
			Resources:           sampler.PoolGate,
			Cancelled:           jobs.CoordCancelChecker(coordStore),
			Logger:              logger,
			OnSlotReleased:      dispatcher.NotifyRelease,
		})
	}

	chapterCounts := func(ctx context.Context, bookID string) int {
		n, err := chapters.CountByBook(ctx, bookID)
		if err != nil {
			logger.Warn("failed to count chapters for routing, defaulting to light pool", "book_id", bookID, "err", err)
			return 0
		}
		return n
	}
	scheduler := jobs.NewScheduler(pools, chapterCounts, logger)
	dispatcher.OnDispatch = scheduler.OnDispatch

	listRunning := func(ctx context.Context) ([]*model.ParsingJob, error) {
		return jobStore.ListByState(ctx, model.JobRunning)
	}
	reconciler := jobs.NewReconciler(jobStore, listRunning,
		time.Duration(cfg.VisibilityTimeoutSeconds)*time.Second,
		time.Duration(cfg.StuckJobSweepIntervalSeconds)*time.Second,
		logger)

	blobs, err := ingest.NewDiskBlobStore(os.ExpandEnv(cfg.StorageRoot))
	if err != nil {
		db.Close()
		return nil, nil, failStartup(1, fmt.Errorf("prepare blob storage: %w", err))
	}
	ig := ingest.New(blobs, books, chapters, jobStore, gate, pq, logger)

	svc := &svcctx.Services{
		DB:       db,
		Books:    books,
		Chapters: chapters,
		Descs:    descs,
		Images:   images,
		Jobs:     jobStore,
		Coord:    coordStore,

		Gate:       gate,
		Queue:      pq,
		Dispatcher: dispatcher,
		Pools:      pools,
		Scheduler:  scheduler,
		Reconciler: reconciler,

		Registry: registry,
		Factory:  factory,
		Pipeline: pl,

		Ingest:        ig,
		ImageQueue:    imgQueue,
		MetricsRecord: metricsRecorder,
		MetricsQuery:  metrics.NewQuery(db),

		ConfigManager: cfgMgr,
		ConfigStore:   configStore,

		Logger: logger,
	}

	closeFn := func() {
		db.Close()
	}
	return svc, closeFn, nil
}

// adaptResourceSample bridges internal/sysinfo.Sampler to
// admission.Gate's sample callback: the two packages carry
// independently-named but structurally identical snapshot types since
// admission must not import a host-sampling concern directly (spec.md
// §4.1 gate 4 only consumes thresholds, per internal/admission's doc
// comment).
func adaptResourceSample(sampler *sysinfo.Sampler) func(ctx context.Context) (admission.ResourceSample, error) {
	return func(ctx context.Context) (admission.ResourceSample, error) {
		s, err := sampler.Read(ctx)
		if err != nil {
			return admission.ResourceSample{}, err
		}
		return admission.ResourceSample{
			MemoryPercent:     s.MemoryPercent,
			AvailableMemoryMB: s.AvailableMemoryMB,
			CPUPercent:        s.CPUPercent,
		}, nil
	}
}

// toProcessorConfigs adapts internal/config.Config.Processors (the
// process-start config shape) to the map internal/processors.Registry.Reload
// expects, resolving ${ENV_VAR} API key references along the way.
func toProcessorConfigs(in map[string]config.ProcessorConfig) map[string]processors.Config {
	out := make(map[string]processors.Config, len(in))
	for name, c := range in {
		out[name] = processors.Config{
			Type:         c.Type,
			Enabled:      c.Enabled,
			Weight:       c.Weight,
			Threshold:    c.Threshold,
			PriorityRank: c.PriorityRank,
			APIKey:       config.ResolveEnvVars(c.APIKey),
			Model:        c.Model,
		}
	}
	return out
}
