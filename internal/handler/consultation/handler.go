package consultation

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/handler"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/service/consultation"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

type Handler struct {
	service *consultation.Service
}

func NewHandler(service *consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/consultations", h.CreateConsultation)
}

func (h *Handler) CreateConsultation(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	consultation, err := h.service.Record(c.Request.Context(), professionalID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, consultation)
}
