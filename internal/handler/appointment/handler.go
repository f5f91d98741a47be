package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/handler"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/service/appointment"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	dates, err := handler.QueryDateRange(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointments, err := h.service.List(c.Request.Context(), professionalID, dates)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	apt, err := h.service.Book(c.Request.Context(), professionalID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.PathID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apt, err := h.service.Get(c.Request.Context(), professionalID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.PathID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	apt, err := h.service.Update(c.Request.Context(), professionalID, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.PathID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), professionalID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.PathID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), professionalID, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": true})
}
