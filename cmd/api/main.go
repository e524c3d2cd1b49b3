package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/splitpay/splitpay-api/internal/config"
	"github.com/splitpay/splitpay-api/internal/domain/credit"
	"github.com/splitpay/splitpay-api/internal/domain/feed"
	"github.com/splitpay/splitpay-api/internal/domain/merchant"
	"github.com/splitpay/splitpay-api/internal/domain/transaction"
	"github.com/splitpay/splitpay-api/internal/domain/user"
	"github.com/splitpay/splitpay-api/internal/middleware"
	"github.com/splitpay/splitpay-api/internal/pkg/database"
	"github.com/splitpay/splitpay-api/internal/pkg/events"
	"github.com/splitpay/splitpay-api/internal/pkg/jwt"
	"github.com/splitpay/splitpay-api/internal/pkg/logger"
	"github.com/splitpay/splitpay-api/internal/pkg/metrics"
	pkgresponse "github.com/splitpay/splitpay-api/internal/pkg/response"
	"github.com/splitpay/splitpay-api/internal/pkg/stripegate"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting SplitPay API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	merchantRepo := merchant.NewRepository(db)
	transactionRepo := transaction.NewRepository(db)

	// ---------- Event sinks ----------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedHub := feed.NewHub()
	go feedHub.Run(ctx)

	sinks := events.Fanout{feedHub}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Kafka")
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	// ---------- Duplicate guard ----------
	var guard transaction.DuplicateGuard
	if redis != nil {
		guard = transaction.NewRedisGuard(redis, cfg.DuplicateWindow)
	} else {
		guard = transaction.NewMemoryGuard(cfg.DuplicateWindow)
	}

	// ---------- Services ----------
	creditService := credit.NewService(db)
	gateway := stripegate.NewClient(stripegate.Config{
		BaseURL:   cfg.StripeBaseURL,
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.StripeTimeout,
	})
	transactionService := transaction.NewService(
		transactionRepo,
		userRepo,
		merchantRepo,
		creditService,
		gateway,
		guard,
		sinks,
		transaction.PolicyFromName(cfg.InstallmentCadence),
		transaction.NewRetryPolicy(cfg.MaxRetries, cfg.RetryBackoffBase),
	)

	// ---------- Handlers ----------
	transactionHandler := transaction.NewHandler(transactionService, cfg.StripeWebhookSecret)
	creditHandler := credit.NewHandler(creditService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket event feed (before Compress)
	r.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(feedHub.ServeWS)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(authMiddleware)

			r.Route("/transactions", transactionHandler.Routes)
			r.Route("/credit", creditHandler.Routes)
		})
	})

	r.Post("/webhooks/stripe", transactionHandler.Webhook)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
