package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/splitpay/splitpay-api/internal/config"
	"github.com/splitpay/splitpay-api/internal/domain/credit"
	"github.com/splitpay/splitpay-api/internal/domain/merchant"
	"github.com/splitpay/splitpay-api/internal/domain/transaction"
	"github.com/splitpay/splitpay-api/internal/domain/user"
	"github.com/splitpay/splitpay-api/internal/pkg/database"
	"github.com/splitpay/splitpay-api/internal/pkg/events"
	"github.com/splitpay/splitpay-api/internal/pkg/logger"
	"github.com/splitpay/splitpay-api/internal/pkg/reports"
	"github.com/splitpay/splitpay-api/internal/pkg/stripegate"
)

// sweepBatchSize bounds how many due installments one tick claims.
const sweepBatchSize = 500

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.SweepInterval).
		Msg("Starting settlement sweep worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	userRepo := user.NewRepository(db)
	merchantRepo := merchant.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)
	creditService := credit.NewService(db)

	var sink events.Sink = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Kafka")
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	gateway := stripegate.NewClient(stripegate.Config{
		BaseURL:   cfg.StripeBaseURL,
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.StripeTimeout,
	})

	// The worker never serves creation requests, so the duplicate guard is
	// process-local.
	service := transaction.NewService(
		transactionRepo,
		userRepo,
		merchantRepo,
		creditService,
		gateway,
		transaction.NewMemoryGuard(cfg.DuplicateWindow),
		sink,
		transaction.PolicyFromName(cfg.InstallmentCadence),
		transaction.NewRetryPolicy(cfg.MaxRetries, cfg.RetryBackoffBase),
	)

	var archive *reports.Archive
	if cfg.ReportsBucket != "" {
		archive, err = reports.NewArchive(reports.Config{
			Bucket:    cfg.ReportsBucket,
			Region:    cfg.ReportsRegion,
			Endpoint:  cfg.ReportsEndpoint,
			AccessKey: cfg.ReportsAccessKey,
			SecretKey: cfg.ReportsSecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize report archive")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down sweep worker...")
		cancel()
	}()

	run(ctx, service, transactionRepo, archive, cfg.SweepInterval)
	log.Info().Msg("Sweep worker exited")
}

func run(ctx context.Context, service transaction.Service, repo transaction.Repository, archive *reports.Archive, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastReportDay := time.Now().UTC().Truncate(24 * time.Hour)

	// Sweep once at startup so a restart doesn't wait a full interval.
	sweep(ctx, service)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, service)

			if archive == nil {
				continue
			}
			today := time.Now().UTC().Truncate(24 * time.Hour)
			if today.After(lastReportDay) {
				publishDailyReport(ctx, repo, archive, lastReportDay)
				lastReportDay = today
			}
		}
	}
}

func sweep(ctx context.Context, service transaction.Service) {
	start := time.Now()
	claimed, err := service.SweepDue(ctx, start, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Sweep failed")
		return
	}
	log.Info().
		Int("claimed", claimed).
		Dur("took", time.Since(start)).
		Msg("Sweep completed")
}

// publishDailyReport aggregates yesterday's settlement outcomes and archives
// them. Failures only log: the next day's rollover retries nothing, reports
// are best-effort.
func publishDailyReport(ctx context.Context, repo transaction.Repository, archive *reports.Archive, day time.Time) {
	stats, err := repo.SettlementStats(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		log.Error().Err(err).Str("day", day.Format("2006-01-02")).Msg("Failed to aggregate settlement stats")
		return
	}

	report := reports.DailyReport{
		Date:            day.Format("2006-01-02"),
		SettledCount:    stats.SettledCount,
		SettledTotal:    stats.SettledTotal,
		FailedCount:     stats.FailedCount,
		FailedTotal:     stats.FailedTotal,
		RetriesExceeded: stats.RetriesExceeded,
		GeneratedAt:     time.Now().UTC(),
	}
	if err := archive.Put(ctx, report); err != nil {
		log.Error().Err(err).Str("day", report.Date).Msg("Failed to archive daily report")
		return
	}
	log.Info().Str("day", report.Date).Int("settled", report.SettledCount).Msg("Daily settlement report archived")
}
