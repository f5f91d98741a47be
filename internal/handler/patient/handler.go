package patient

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/handler"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/service/patient"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

type linkRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
}

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/patients", h.LinkPatient)
}

func (h *Handler) LinkPatient(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	if err := h.service.Link(c.Request.Context(), professionalID, req.PatientID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, gin.H{
		"professional_id": professionalID,
		"patient_id":      req.PatientID,
	})
}
