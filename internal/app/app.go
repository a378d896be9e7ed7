// Package app assembles the configured adapters into a runnable agent.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/predictionscope/agent/internal/allocate"
	"github.com/predictionscope/agent/internal/config"
	"github.com/predictionscope/agent/internal/infrastructure/artifacts"
	"github.com/predictionscope/agent/internal/infrastructure/decisionlog"
	"github.com/predictionscope/agent/internal/infrastructure/github"
	"github.com/predictionscope/agent/internal/infrastructure/ledger"
	"github.com/predictionscope/agent/internal/infrastructure/llm"
	"github.com/predictionscope/agent/internal/infrastructure/providers"
	"github.com/predictionscope/agent/internal/infrastructure/scheduler"
	"github.com/predictionscope/agent/internal/infrastructure/snapshot"
	"github.com/predictionscope/agent/internal/infrastructure/telegram"
	"github.com/predictionscope/agent/internal/infrastructure/trendfeeds"
	"github.com/predictionscope/agent/internal/logging"
	"github.com/predictionscope/agent/internal/ports"
	"github.com/predictionscope/agent/internal/publish"
	"github.com/predictionscope/agent/internal/runlock"
	"github.com/predictionscope/agent/internal/trends"
	"github.com/predictionscope/agent/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance from configuration.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	sources := []ports.MarketSource{
		providers.NewKalshiClient(cfg.Providers.Kalshi.BaseURL, cfg.Providers.Kalshi.APIKey, cfg.Providers.Kalshi.Limit, nil),
		providers.NewPolymarketClient(cfg.Providers.Polymarket.BaseURL, cfg.Providers.Polymarket.Limit, nil),
	}

	registry := trends.NewRegistry()
	registry.Register(trendfeeds.NewRSSSource())
	registry.Register(trendfeeds.NewPageSource(nil))

	feeds := make([]usecase.TrendFeed, 0, len(cfg.Trends))
	for _, tc := range cfg.Trends {
		feeds = append(feeds, usecase.TrendFeed{
			Strategy: tc.Source,
			Request: trends.Request{
				Name:    tc.Name,
				URL:     tc.URL,
				Limit:   tc.Limit,
				Options: tc.Options,
			},
		})
	}

	var strategist ports.Strategist
	var writer ports.Writer
	if cfg.LLM.APIKey != "" {
		strategist = llm.NewStrategist(cfg.LLM)
		writer = llm.NewWriter(cfg.LLM)
	}

	var review ports.ReviewPublisher
	if cfg.Review.GitHub.Token != "" && cfg.Review.GitHub.Owner != "" {
		review = github.NewPublisher(cfg.Review.GitHub, http.DefaultClient)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	coordinator := publish.NewCoordinator(publish.Deps{
		Writer:    writer,
		Artifacts: artifacts.NewFileStore(cfg.Data.ContentDir),
		Ledger:    ledger.NewFileLedger(cfg.Data.LedgerPath()),
		Log:       decisionlog.NewFileLog(cfg.Data.DecisionLogPath()),
		Review:    review,
		Notifier:  notifier,
		Logger:    baseLogger.With("component", "publish"),
	})

	buckets := make([]allocate.Bucket, 0, len(cfg.Planner.Buckets))
	for _, b := range cfg.Planner.Buckets {
		buckets = append(buckets, allocate.Bucket{
			Name:   b.Name,
			Weight: b.Weight,
			Floor:  b.FloorOrDefault(),
		})
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:     sources,
		Snapshots:   snapshot.NewFileStore(cfg.Data.SnapshotPath()),
		Ledger:      ledger.NewFileLedger(cfg.Data.LedgerPath()),
		Trends:      registry,
		Feeds:       feeds,
		Strategist:  strategist,
		Coordinator: coordinator,
		Plan: usecase.Plan{
			MaxPerRun:     cfg.Planner.MaxPerRun,
			MinScore:      cfg.Planner.MinScoreOrDefault(),
			MoveThreshold: cfg.Planner.MoveThresholdOrDefault(),
			Buckets:       buckets,
		},
		ContentDir: cfg.Data.ContentDir,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline}
}

// RunOnce executes a single run under the run lock. The lock is held for
// the whole run; a second invocation while one is in flight fails fast.
func (a *Application) RunOnce(ctx context.Context, dryRun bool) error {
	lock, err := runlock.Acquire(a.cfg.Data.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	now := time.Now().In(a.cfg.Scheduler.Location())
	runID := NewRunID(now)
	a.logger.Info("run starting", "run_id", runID, "dry_run", dryRun)

	if err := a.pipeline.RunOnce(ctx, runID, now, dryRun); err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	return nil
}

// Serve blocks, executing a run on every scheduler tick until ctx is
// cancelled.
func (a *Application) Serve(ctx context.Context) error {
	var driver ports.Scheduler = scheduler.NewIntervalScheduler(a.cfg.Scheduler.Every())

	job := func(time.Time) {
		if err := a.RunOnce(ctx, false); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}

	if err := driver.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	return driver.Stop(context.Background())
}

// NewRunID derives the run identifier from the trigger time plus a short
// random suffix so two runs in the same second stay distinguishable.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102-150405") + "-" + suffix
}
