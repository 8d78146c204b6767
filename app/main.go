package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/constituant/constituant/app/api"
	"github.com/constituant/constituant/app/cache"
	"github.com/constituant/constituant/app/cfg"
	"github.com/constituant/constituant/app/classify"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/fulltext"
	"github.com/constituant/constituant/app/ingest"
	"github.com/constituant/constituant/app/normalize"
	"github.com/constituant/constituant/app/parser"
	"github.com/constituant/constituant/app/review"
	"github.com/constituant/constituant/app/sources"
	"github.com/constituant/constituant/app/tasks"
	"github.com/constituant/constituant/app/vote"
)

type app struct {
	cfg          *cfg.Cfg
	db           *database.DB
	cache        *cache.Cache
	bills        *database.BillRepo
	pending      *database.PendingBillRepo
	imports      *database.ImportLogRepo
	orchestrator *ingest.Orchestrator
	statusJob    *ingest.StatusJob
	reclassifier *ingest.Reclassifier
}

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(appCfg); err != nil {
		slog.Error("Fatal error", "command", appCfg.Command, "error", err)
		os.Exit(1)
	}
}

func run(appCfg *cfg.Cfg) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, appCfg)
	if err != nil {
		return err
	}
	defer a.close()

	switch appCfg.Command {
	case cfg.CommandIngest:
		report, err := a.orchestrator.Run(ctx)
		if err != nil {
			return err
		}
		for _, s := range report.Sources {
			slog.Info("Source summary", "source", s.Source, "status", s.Status,
				"fetched", s.Fetched, "new", s.New, "updated", s.Updated, "skipped", s.Skipped)
		}
		if report.Failed() {
			return errors.New("at least one source failed")
		}
		return nil

	case cfg.CommandReclassify:
		report, err := a.reclassifier.Run(ctx, appCfg.ReclassifyLimit, appCfg.Force)
		if err != nil {
			return err
		}
		slog.Info("Reclassification summary", "selected", report.Selected, "classified", report.Classified,
			"failed", report.Failed, "skipped", report.Skipped)
		return nil

	case cfg.CommandStatuses:
		_, err := a.statusJob.Run(ctx)
		a.cache.InvalidateLists(ctx)
		return err

	default:
		return a.serve(ctx)
	}
}

func setup(ctx context.Context, appCfg *cfg.Cfg) (*app, error) {
	slog.Info("Connecting to database...", "driver", appCfg.DBDriver)
	db, err := database.NewConnection(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	a := &app{
		cfg:     appCfg,
		db:      db,
		bills:   database.NewBillRepository(db),
		pending: database.NewPendingBillRepository(db),
		imports: database.NewImportLogRepository(db),
	}

	if appCfg.RedisAddr != "" {
		// Redis is optional; the application runs uncached without it.
		c, err := cache.NewCache(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.CacheTTL)
		if err != nil {
			slog.Warn("Cache disabled", "error", err)
		} else {
			a.cache = c
		}
	}

	configs, err := sources.LoadConfigs(appCfg.SourcesFile)
	if err != nil {
		a.close()
		return nil, err
	}

	client := fetch.NewClient(fetch.Options{UserAgent: appCfg.UserAgent})
	srcs, err := sources.DefaultRegistry().BuildEnabled(configs, sources.Deps{
		Client:   client,
		Parser:   parser.NewParser(),
		Location: appCfg.Location,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	slog.Info("Sources loaded", "enabled", len(srcs), "configured", len(configs))

	if appCfg.MistralAPIKey == "" {
		slog.Warn("MISTRAL_API_KEY not set, bills stay unclassified")
	}
	classifier := classify.NewMistralClassifier(classify.Options{
		APIKey:   appCfg.MistralAPIKey,
		Endpoint: appCfg.MistralEndpoint,
		Model:    appCfg.MistralModel,
		Timeout:  appCfg.MistralTimeout,
		Attempts: appCfg.MistralAttempts,
		Backoff:  appCfg.MistralBackoff,
		Client:   client,
	})

	var texts ingest.TextFetcher
	if appCfg.FetchFullText {
		texts = fulltext.NewExtractor(client)
	}
	enricher := ingest.NewEnricher(classifier, texts, appCfg.ClassifyDelay)

	var strategy ingest.Strategy = ingest.NewReviewQueue(a.pending, a.bills, enricher)
	if ingest.Mode(appCfg.IngestMode) == ingest.ModeDirect {
		strategy = ingest.NewDirect(a.bills, enricher, appCfg.Lookahead)
	}

	a.statusJob = ingest.NewStatusJob(a.bills, appCfg.Lookahead)
	a.orchestrator = ingest.NewOrchestrator(srcs, normalize.NewNormalizer(appCfg.Location), strategy,
		a.statusJob, a.imports, ingest.DefaultSourceDelay)
	a.reclassifier = ingest.NewReclassifier(a.pending, enricher)

	return a, nil
}

func (a *app) close() {
	if err := a.cache.Close(); err != nil {
		slog.Warn("Cache close error", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("Database close error", "error", err)
	}
}

func (a *app) serve(ctx context.Context) error {
	appCfg := a.cfg

	triggers := a.triggers()
	slog.Info("Starting background scheduler", "triggers", len(triggers))
	scheduler := tasks.NewScheduler(tasks.Options{Triggers: triggers})
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	handler := api.NewHandler(api.Deps{
		Votes: vote.NewService(a.bills, database.NewVoteRepository(a.db), a.cache, vote.Options{
			RateLimit:  appCfg.VoteRateLimit,
			RateWindow: appCfg.VoteRateWindow,
			Location:   appCfg.Location,
		}),
		Review:        review.NewService(a.pending, a.bills, appCfg.Lookahead),
		Imports:       a.imports,
		Cache:         a.cache,
		DB:            a.db,
		Scheduler:     scheduler,
		NewIngestTask: a.newIngestTask,
		Generator:     api.NewGenerator(appCfg.BaseURL, appCfg.Version),
		AdminPassword: appCfg.AdminPassword,
		Version:       appCfg.Version,
		Location:      appCfg.Location,
	})
	server := api.NewServer(handler, api.ServerOptions{
		APIAccessKey: appCfg.APIAccessKey,
		VoteRate:     appCfg.HTTPRate,
		VoteBurst:    appCfg.HTTPBurst,
	})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "version", appCfg.Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}

// triggers lists the cron jobs of the serve command. An empty schedule
// disables its job.
func (a *app) triggers() []tasks.Trigger {
	appCfg := a.cfg

	var triggers []tasks.Trigger
	if appCfg.IngestSchedule != "" {
		triggers = append(triggers, tasks.Trigger{
			Name:     "ingest",
			Schedule: appCfg.IngestSchedule,
			NewTask:  a.newIngestTask,
		})
	}
	if appCfg.StatusSchedule != "" {
		triggers = append(triggers, tasks.Trigger{
			Name:     "statuses",
			Schedule: appCfg.StatusSchedule,
			NewTask:  func() tasks.TaskInterface { return tasks.NewStatusUpdateTask(a.statusJob) },
		})
	}
	if appCfg.ReclassifySchedule != "" {
		triggers = append(triggers, tasks.Trigger{
			Name:     "reclassify",
			Schedule: appCfg.ReclassifySchedule,
			NewTask: func() tasks.TaskInterface {
				return tasks.NewReclassifyTask(a.reclassifier, appCfg.ReclassifyLimit, false)
			},
		})
	}
	return triggers
}

func (a *app) newIngestTask() tasks.TaskInterface {
	return &cacheFlushTask{IngestTask: tasks.NewIngestTask(a.orchestrator), cache: a.cache}
}

// cacheFlushTask drops cached lists once an ingestion pass has published or
// moved bills.
type cacheFlushTask struct {
	*tasks.IngestTask
	cache *cache.Cache
}

func (t *cacheFlushTask) Execute(ctx context.Context) error {
	err := t.IngestTask.Execute(ctx)
	t.cache.InvalidateLists(context.WithoutCancel(ctx))
	return err
}
