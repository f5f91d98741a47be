package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/agenda-api/config"
	"github.com/jwalitptl/agenda-api/internal/email"
	"github.com/jwalitptl/agenda-api/internal/handler/health"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository/postgres"
	internalWorker "github.com/jwalitptl/agenda-api/internal/worker"
	"github.com/jwalitptl/agenda-api/pkg/logger"
	"github.com/jwalitptl/agenda-api/pkg/messaging"
	"github.com/jwalitptl/agenda-api/pkg/messaging/redis"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
	"github.com/jwalitptl/agenda-api/pkg/worker"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("agenda_worker", registry)

	// Initialize database
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := postgres.NewDB(dbCtx, cfg.Database)
	cancel()
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLogger.Zerolog())
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)

	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), appLogger, m)
	if err != nil {
		appLogger.Fatal(err, "Failed to create outbox processor")
	}

	cleanup, err := internalWorker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to create outbox cleanup worker")
	}

	// Setup health check endpoints
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(map[string]health.Check{
		"database": db.PingContext,
		"redis":    broker.Ping,
	}, registry).RegisterRoutes(engine.Group(""))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		processor.Start(gctx)
		return nil
	})
	g.Go(func() error {
		cleanup.Start(gctx)
		return nil
	})

	if cfg.SMTP.Host != "" {
		mailer, err := email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			appLogger.Fatal(err, "Failed to configure SMTP")
		}
		g.Go(func() error {
			return messaging.Consume(gctx, broker,
				messaging.Channel(model.EventSubscriptionActivated),
				email.SubscriptionActivatedHandler(mailer),
				func(err error) { appLogger.Error(err, "Failed to send subscription e-mail") },
			)
		})
	} else {
		appLogger.Warn("SMTP not configured, subscription e-mails disabled")
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	appLogger.Info("Worker started")
	if err := g.Wait(); err != nil {
		appLogger.Error(err, "Worker stopped with error")
		return
	}
	appLogger.Info("Worker exited properly")
}
