package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/price-tracker/internal/api"
	"github.com/Priya8975/price-tracker/internal/catalog"
	"github.com/Priya8975/price-tracker/internal/config"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/metrics"
	"github.com/Priya8975/price-tracker/internal/monitor"
	"github.com/Priya8975/price-tracker/internal/notify"
	"github.com/Priya8975/price-tracker/internal/pricing"
	"github.com/Priya8975/price-tracker/internal/scheduler"
	"github.com/Priya8975/price-tracker/internal/scraper"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/Priya8975/price-tracker/internal/subscription"
	ws "github.com/Priya8975/price-tracker/internal/websocket"
	"github.com/Priya8975/price-tracker/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	var mailer notify.Mailer
	if cfg.SMTPHost == "" {
		mailer = notify.NewLogMailer(logger)
		logger.Warn("SMTP_HOST not set, notifications will be logged instead of sent")
	} else {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}

	// Notification pipeline
	breaker := engine.NewCircuitBreaker(redisStore.Client(), 5, 30*time.Second, logger)
	limiter := engine.NewRateLimiter(redisStore.Client(), logger)
	dispatcher := engine.NewDispatcher(pgStore, redisStore, cfg.NotifyMaxRetries, logger)
	fanout := engine.NewFanOut(pgStore, pgStore, dispatcher, logger)

	executor := worker.NewExecutor(pgStore, mailer, redisStore, breaker, limiter, hub, worker.ExecutorConfig{
		RetryDelay: cfg.NotifyRetryDelay,
		RateLimit:  cfg.SMTPRateLimit,
	}, logger)
	pool := worker.NewPool(cfg.NumWorkers, executor, logger)
	pool.Start(ctx)

	poller := worker.NewPoller(redisStore, pool, logger)
	pollerDone := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(pollerDone)
	}()

	// Domain services
	pageScraper := scraper.New(scraper.Config{
		Timeout:         cfg.ScrapeTimeout,
		MaxRetries:      uint64(cfg.ScrapeMaxRetries),
		UserAgent:       cfg.ScrapeUserAgent,
		NameSelector:    cfg.ScrapeNameSelector,
		PriceSelector:   cfg.ScrapePriceSelector,
		ImageSelector:   cfg.ScrapeImageSelector,
		AvailableText:   cfg.ScrapeAvailableText,
		UnavailableText: cfg.ScrapeUnavailableText,
	}, logger)

	catalogSvc := catalog.NewService(pgStore, pgStore, pgStore, pageScraper, dispatcher, logger)
	pricingSvc := pricing.NewService(pgStore, pgStore, pageScraper, fanout, hub, cfg.CheckConcurrency, logger)
	subscriptionSvc := subscription.NewService(pgStore, pgStore, dispatcher, cfg.PublicBaseURL, logger)
	monitorSvc := monitor.NewService(pgStore, dispatcher, logger)

	sched := scheduler.New(pricingSvc, dispatcher, pricingSvc, monitorSvc, scheduler.Config{
		CheckInterval:     cfg.CheckInterval,
		RecoveryInterval:  cfg.RecoveryInterval,
		RecoveryGrace:     cfg.RecoveryGrace,
		PriceLogRetention: cfg.PriceLogRetention,
		JobRetention:      cfg.JobRetention,
	}, logger)
	go sched.Run(ctx)

	// Setup router
	router := api.NewRouter(api.Deps{
		Catalog:       catalogSvc,
		Pricing:       pricingSvc,
		Subscriptions: subscriptionSvc,
		Monitor:       monitorSvc,
		Stats:         pgStore,
		Queue:         redisStore,
		Breaker:       breaker,
		MailRelay:     mailer.Relay(),
		Hub:           hub,
		HealthChecks:  map[string]api.Pinger{"postgres": pgStore, "redis": redisStore},
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Claimed envelopes still in the pool go back to the queue.
	cancel()
	<-pollerDone
	pool.Stop()

	logger.Info("server stopped")
}
