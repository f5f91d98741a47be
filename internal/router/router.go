package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/agenda-api/internal/handler/appointment"
	"github.com/jwalitptl/agenda-api/internal/handler/consultation"
	"github.com/jwalitptl/agenda-api/internal/handler/health"
	"github.com/jwalitptl/agenda-api/internal/handler/patient"
	"github.com/jwalitptl/agenda-api/internal/handler/payment"
	"github.com/jwalitptl/agenda-api/internal/handler/schedule"
	"github.com/jwalitptl/agenda-api/internal/handler/subscription"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/pkg/logger"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
)

type Handlers struct {
	Health       *health.Handler
	Schedule     *schedule.Handler
	Appointment  *appointment.Handler
	Patient      *patient.Handler
	Consultation *consultation.Handler
	Subscription *subscription.Handler
	Payment      *payment.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	WebhookRateLimit rate.Limit
	WebhookRateBurst int
	RequestTimeout   time.Duration
	MaxBodySize      int64
	HSTS             bool
	CORSConfig       middleware.CORSConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	handlers Handlers,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	engine := gin.New()

	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(config.HSTS),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(config.RequestTimeout),
		middleware.SizeLimit(config.MaxBodySize),
	)

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine.Group(""))

	agenda := r.engine.Group("/agenda")

	// The gateway calls the webhook without credentials.
	webhook := agenda.Group("")
	if r.config.RateLimitEnabled {
		webhook.Use(r.limiter(r.config.WebhookRateLimit, r.config.WebhookRateBurst))
	}
	r.handlers.Payment.RegisterWebhook(webhook)

	protected := agenda.Group("")
	if r.config.RateLimitEnabled {
		protected.Use(r.limiter(r.config.RateLimit, r.config.RateBurst))
	}
	protected.Use(r.auth.Authenticate())

	manage := protected.Group("", r.auth.RequireCapability(model.CapManageAgenda))
	r.handlers.Schedule.RegisterRoutes(manage)
	r.handlers.Appointment.RegisterRoutes(manage)
	r.handlers.Patient.RegisterRoutes(manage)
	r.handlers.Payment.RegisterRoutes(manage)

	view := protected.Group("", r.auth.RequireCapability(model.CapViewSubscription))
	r.handlers.Subscription.RegisterRoutes(view)

	billing := protected.Group("", r.auth.RequireCapability(model.CapRecordConsultation))
	r.handlers.Consultation.RegisterRoutes(billing)

	review := protected.Group("/admin", r.auth.RequireCapability(model.CapReviewWebhooks))
	r.handlers.Payment.RegisterReview(review)
}

func (r *Router) limiter(limit rate.Limit, burst int) gin.HandlerFunc {
	return middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  limit,
		Burst: burst,
	}).RateLimit()
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
