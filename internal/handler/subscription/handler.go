package subscription

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/handler"
	"github.com/jwalitptl/agenda-api/internal/service/subscription"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

type Handler struct {
	service *subscription.Service
}

func NewHandler(service *subscription.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/subscription-status", h.GetStatus)
}

// GetStatus never fails for a professional without a subscription; it
// reports status "none".
func (h *Handler) GetStatus(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	view, err := h.service.Status(c.Request.Context(), professionalID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}
