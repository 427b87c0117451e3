// cmd/intake-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"whitelist-intake/internal/archive"
	commonaws "whitelist-intake/internal/common/aws"
	"whitelist-intake/internal/common/config"
	"whitelist-intake/internal/common/database"
	"whitelist-intake/internal/common/database/migrations"
	commonhttp "whitelist-intake/internal/common/http"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/common/observability"
	"whitelist-intake/internal/common/scheduler"
	"whitelist-intake/internal/grants"
	"whitelist-intake/internal/httpapi"
	"whitelist-intake/internal/intake"
	"whitelist-intake/internal/models"
	"whitelist-intake/internal/platform/webhook"
	"whitelist-intake/internal/review"
	"whitelist-intake/internal/store"
	syncgrants "whitelist-intake/internal/workers/reconciliation/sync-grants"
	"whitelist-intake/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intake manager...", zap.String("version", cfg.App.Version))

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability init failed, sweep instruments disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Decision store ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := database.ApplyMigrations(ctx, pg.DB, migrations.FS); err != nil {
		zapLog.Fatal("migrations failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected and migrated")

	// --- Session snapshots ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	questions, err := registry.LoadQuestionSet(cfg.Intake.QuestionSetPath)
	if err != nil {
		zapLog.Fatal("question set load failed", zap.Error(err))
	}
	zapLog.Info("Question set loaded",
		zap.String("version", questions.Version),
		zap.Int("questions", questions.Count()),
	)

	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Platform.Timeout))
	platform := webhook.NewPresenter(httpClient.WithToken(cfg.Platform.Token), cfg.Platform.WebhookURL, log)
	snapshots := intake.NewRedisSnapshots(rdb.Client, config.GetDuration(cfg.Intake.SnapshotTTL))
	decisions := store.NewDecisions(pg.DB, log)
	sessions := intake.NewRegistry()

	checks := map[string]httpapi.Check{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	reviewCfg := review.Config{
		AdminRoles:  cfg.Intake.AdminRoles,
		QuestionSet: questions,
		Session: intake.Deps{
			AvatarURLTemplate: cfg.Intake.AvatarURLTemplate,
			FieldLimit:        cfg.Intake.SummaryFieldLimit,
			Fetcher:           intake.NewHTTPFetcher(httpClient, config.GetDuration(cfg.Intake.AttachmentTimeout)),
		},
		Decisions: decisions,
		Registry:  sessions,
		Platform:  platform,
		Snapshots: snapshots,
	}

	// --- Archive index (optional) ---
	if cfg.Archive.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := esClient.Ping(ctx); err != nil {
			zapLog.Warn("elasticsearch not reachable yet, archiving is best effort", zap.Error(err))
		}
		reviewCfg.Archive = archive.NewIndexer(esClient.Client, cfg.Archive.Index, log)
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Archive index enabled", zap.String("index", cfg.Archive.Index))
	}

	// --- Decision events (optional) ---
	if cfg.Notifications.SNS.Enabled {
		publisher, err := commonaws.NewDecisionPublisher(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns publisher failed", zap.Error(err))
		}
		reviewCfg.Publisher = publisher
		zapLog.Info("Decision events enabled", zap.String("topic", cfg.Notifications.SNS.TopicARN))
	}

	dispatcher := review.NewDispatcher(reviewCfg, log)

	snaps, err := snapshots.LoadAll(ctx)
	if err != nil {
		zapLog.Error("loading session snapshots failed, starting empty", zap.Error(err))
	}
	restored := sessions.Restore(ctx, snaps, dispatcher.SessionDeps())
	zapLog.Info("Sessions restored", zap.Int("restored", restored), zap.Int("snapshots", len(snaps)))

	// --- Reconciliation jobs ---
	jobs := scheduler.New(log)
	if cfg.Reconciliation.Enabled {
		var grantsDB *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			grantsDB, err = database.NewPostgres(cfg.Database.Grants)
			if err != nil {
				return err
			}
			return grantsDB.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Grant store connection")
		if err != nil {
			zapLog.Fatal("grant store failed after retries", zap.Error(err))
		}
		defer grantsDB.Close()
		checks["grants"] = grantsDB.Ping

		grantStore, err := grants.NewStore(grantsDB.DB, cfg.Reconciliation.TablePrefix)
		if err != nil {
			zapLog.Fatal("grant store config invalid", zap.Error(err))
		}

		syncCfg := syncgrants.LoadConfig(cfg.Reconciliation)
		handler := syncgrants.NewHandler(syncCfg, decisions, grantStore, obs, log)
		if err := jobs.Every(syncgrants.JobAccepted, syncCfg.Interval, handler.Job(models.ActionAccepted)); err != nil {
			zapLog.Fatal("failed to schedule job", zap.Error(err))
		}
		if err := jobs.Every(syncgrants.JobRejected, syncCfg.Interval, handler.Job(models.ActionRejected)); err != nil {
			zapLog.Fatal("failed to schedule job", zap.Error(err))
		}
		jobs.Start()
		zapLog.Info("Reconciliation jobs scheduled",
			zap.Strings("jobs", jobs.Jobs()),
			zap.Duration("interval", syncCfg.Interval),
		)
	}

	// --- API, Health & Metrics Server ---
	api := httpapi.NewServer(dispatcher, checks, log)
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping API server", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		zapLog.Error("Error stopping reconciliation jobs", zap.Error(err))
	}

	zapLog.Info("Intake manager stopped gracefully", zap.Int("openSessions", sessions.Len()))
}
