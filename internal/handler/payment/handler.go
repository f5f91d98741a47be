package payment

import (
	stderrors "errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/handler"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/service/payment"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

type Handler struct {
	issuer     *payment.Issuer
	reconciler *payment.Reconciler
}

func NewHandler(issuer *payment.Issuer, reconciler *payment.Reconciler) *Handler {
	return &Handler{issuer: issuer, reconciler: reconciler}
}

// RegisterRoutes registers the professional-facing payment routes on an
// authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/create-subscription-payment", h.CreateSubscriptionPayment)
}

// RegisterWebhook registers the gateway callback. It must not sit behind
// authentication.
func (h *Handler) RegisterWebhook(r *gin.RouterGroup) {
	r.POST("/webhook", h.Webhook)
}

// RegisterReview registers operator routes on a group restricted to admins.
func (h *Handler) RegisterReview(r *gin.RouterGroup) {
	r.GET("/webhooks/quarantined", h.ListQuarantined)
}

func (h *Handler) CreateSubscriptionPayment(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	// The body is optional.
	var req model.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	intent, err := h.issuer.CreateIntent(c.Request.Context(), professionalID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, intent)
}

// Webhook acknowledges every notification it could process, including ones
// it chose to ignore. Only failures worth a redelivery answer 500.
func (h *Handler) Webhook(c *gin.Context) {
	n := parseNotification(c)

	outcome, err := h.reconciler.Handle(c.Request.Context(), n)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"outcome": outcome})
}

func (h *Handler) ListQuarantined(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.RespondWithError(c, errors.Validation("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	events, err := h.reconciler.Quarantined(c.Request.Context(), limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, events)
}
