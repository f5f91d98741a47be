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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/agenda-api/config"
	"github.com/jwalitptl/agenda-api/internal/gateway/mercadopago"
	appointmentHandler "github.com/jwalitptl/agenda-api/internal/handler/appointment"
	consultationHandler "github.com/jwalitptl/agenda-api/internal/handler/consultation"
	"github.com/jwalitptl/agenda-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/agenda-api/internal/handler/patient"
	paymentHandler "github.com/jwalitptl/agenda-api/internal/handler/payment"
	scheduleHandler "github.com/jwalitptl/agenda-api/internal/handler/schedule"
	subscriptionHandler "github.com/jwalitptl/agenda-api/internal/handler/subscription"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/repository/postgres"
	"github.com/jwalitptl/agenda-api/internal/router"
	appointmentService "github.com/jwalitptl/agenda-api/internal/service/appointment"
	consultationService "github.com/jwalitptl/agenda-api/internal/service/consultation"
	patientService "github.com/jwalitptl/agenda-api/internal/service/patient"
	paymentService "github.com/jwalitptl/agenda-api/internal/service/payment"
	scheduleService "github.com/jwalitptl/agenda-api/internal/service/schedule"
	subscriptionService "github.com/jwalitptl/agenda-api/internal/service/subscription"
	"github.com/jwalitptl/agenda-api/pkg/auth"
	"github.com/jwalitptl/agenda-api/pkg/logger"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		appLogger.Fatal(err, "invalid scheduling timezone")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("agenda", registry)

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := postgres.NewDB(ctx, cfg.Database)
	cancel()
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	txManager := postgres.NewTxManager(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	rosterRepo := postgres.NewPatientRosterRepository(db)
	membershipRepo := postgres.NewMembershipRepository(db)
	consultationRepo := postgres.NewConsultationRepository(db)
	subscriptionRepo := postgres.NewSubscriptionRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	webhookRepo := postgres.NewWebhookEventRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Payment gateway
	gateway, err := mercadopago.New(mercadopago.Config{
		AccessToken:         cfg.Secrets.GatewayAccessToken,
		NotificationURL:     cfg.Gateway.NotificationURL,
		SuccessURL:          cfg.Gateway.SuccessURL,
		FailureURL:          cfg.Gateway.FailureURL,
		PendingURL:          cfg.Gateway.PendingURL,
		Sandbox:             cfg.Gateway.Sandbox,
		RequestTimeout:      cfg.Gateway.RequestTimeout,
		BreakerFailures:     cfg.Gateway.BreakerFailures,
		BreakerOpenDuration: cfg.Gateway.BreakerOpenDuration,
	}, m)
	if err != nil {
		appLogger.Fatal(err, "failed to initialize payment gateway")
	}

	// Initialize services
	scheduleSvc := scheduleService.NewService(scheduleRepo, appointmentRepo, scheduleService.Config{
		Location:     loc,
		CacheTTL:     cfg.Scheduling.CacheTTL,
		MaxRangeDays: cfg.Scheduling.MaxRangeDays,
	})
	subscriptionSvc := subscriptionService.NewService(subscriptionRepo, time.Now)
	appointmentSvc := appointmentService.NewService(appointmentService.Deps{
		Appointments: appointmentRepo,
		Roster:       rosterRepo,
		Outbox:       outboxRepo,
		Tx:           txManager,
		Gate:         subscriptionSvc,
		Location:     loc,
		Logger:       appLogger,
		Metrics:      m,
	})
	patientSvc := patientService.NewService(rosterRepo, subscriptionSvc)
	consultationSvc := consultationService.NewService(consultationRepo, membershipRepo, time.Now)

	issuer, err := paymentService.NewIssuer(paymentService.IssuerDeps{
		Gateway:       gateway,
		Payments:      paymentRepo,
		Subscriptions: subscriptionRepo,
		Tx:            txManager,
		Logger:        appLogger,
		Metrics:       m,
	}, paymentService.IssuerConfig{
		AmountCents: cfg.Subscription.PriceCents,
		Currency:    cfg.Subscription.Currency,
		Description: cfg.Subscription.Description,
	})
	if err != nil {
		appLogger.Fatal(err, "failed to initialize payment issuer")
	}

	reconciler, err := paymentService.NewReconciler(paymentService.ReconcilerDeps{
		Gateway:       gateway,
		Payments:      paymentRepo,
		Subscriptions: subscriptionRepo,
		Webhooks:      webhookRepo,
		Outbox:        outboxRepo,
		Tx:            txManager,
		Logger:        appLogger,
		Metrics:       m,
	}, paymentService.ReconcilerConfig{GrantDays: cfg.Subscription.GrantDays})
	if err != nil {
		appLogger.Fatal(err, "failed to initialize payment reconciler")
	}

	// Initialize middleware
	if err := middleware.RegisterValidators(); err != nil {
		appLogger.Fatal(err, "failed to register validators")
	}
	verifier, err := auth.NewVerifier(cfg.Secrets.JWTSecret)
	if err != nil {
		appLogger.Fatal(err, "failed to initialize token verifier")
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	// Initialize handlers
	handlers := router.Handlers{
		Health: health.NewHandler(map[string]health.Check{
			"database": db.PingContext,
		}, registry),
		Schedule:     scheduleHandler.NewHandler(scheduleSvc),
		Appointment:  appointmentHandler.NewHandler(appointmentSvc),
		Patient:      patientHandler.NewHandler(patientSvc),
		Consultation: consultationHandler.NewHandler(consultationSvc),
		Subscription: subscriptionHandler.NewHandler(subscriptionSvc),
		Payment:      paymentHandler.NewHandler(issuer, reconciler),
	}

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(authMiddleware, handlers, appLogger, m, router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RPS),
		RateBurst:        cfg.RateLimit.Burst,
		WebhookRateLimit: rate.Limit(cfg.RateLimit.WebhookRPS),
		WebhookRateBurst: cfg.RateLimit.WebhookBurst,
		RequestTimeout:   cfg.Server.RequestTimeout,
		HSTS:             cfg.Server.HSTS,
		CORSConfig:       middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
	})
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal(err, "server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
