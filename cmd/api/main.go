package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/docktorek/docktorek-api/internal/api/router"
	"github.com/docktorek/docktorek-api/internal/appointment"
	appconfig "github.com/docktorek/docktorek-api/internal/config"
	"github.com/docktorek/docktorek-api/internal/events"
	"github.com/docktorek/docktorek-api/internal/notify"
	"github.com/docktorek/docktorek-api/internal/observability/metrics"
	"github.com/docktorek/docktorek-api/internal/profile"
	"github.com/docktorek/docktorek-api/internal/receipt"
	"github.com/docktorek/docktorek-api/internal/schedule"
	"github.com/docktorek/docktorek-api/internal/slotcache"
	"github.com/docktorek/docktorek-api/pkg/clock"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

func main() {
	// Load .env in local development; missing files are fine.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting docktorek API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	// Storage and core services.
	outbox := events.NewStore(pool)
	scheduleRepo := schedule.NewPostgresRepository(pool)
	scheduleService := schedule.NewService(scheduleRepo, logger)
	profileRepo := profile.NewPostgresRepository(pool)

	receipts := receipt.NewJWTProvider(cfg.ReceiptSigningKey, clock.Real{})
	appointmentRepo := appointment.NewPostgresRepository(pool, outbox).
		WithMaxRetries(cfg.BookingMaxRetries)
	appointmentService := appointment.NewService(appointmentRepo, scheduleService, receipts, logger).
		WithDirectory(profileRepo).
		WithMetrics(schedulingMetrics)

	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		appointmentService = appointmentService.WithCache(slotcache.New(redisClient, cfg.SlotCacheTTL, logger))
		logger.Info("slot cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SlotCacheTTL)
	} else {
		logger.Info("slot cache disabled, REDIS_ADDR not set")
	}

	// Notification consumer behind the transactional outbox.
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
		logger.Info("sendgrid email sender configured", "from", cfg.SendGridFromEmail)
	} else {
		emailSender = notify.NewStubEmailSender(logger)
		logger.Info("email disabled, using stub sender")
	}
	notifyService := notify.NewService(notify.NewPostgresStore(pool), logger).
		WithDirectory(profileRepo).
		WithEmail(emailSender).
		WithDeduper(events.NewProcessedStore(pool))

	deliverer := events.NewDeliverer(outbox, notifyService, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	if cfg.AuthJWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET is empty, all authenticated requests will be rejected")
	}

	r := router.New(&router.Config{
		Logger:             logger,
		ScheduleHandler:    schedule.NewHandler(scheduleService, logger),
		AppointmentHandler: appointment.NewHandler(appointmentService, logger),
		ProfileHandler:     profile.NewHandler(profileRepo, scheduleService, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AuthSecret:         cfg.AuthJWTSecret,
		RequestTimeout:     cfg.RepoTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
