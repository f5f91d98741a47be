package schedule

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/handler"
	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/service/schedule"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

type Handler struct {
	service *schedule.Service
}

func NewHandler(service *schedule.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects r to be authenticated.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/schedule-config", h.GetConfig)
	r.PUT("/schedule-config", h.PutConfig)
	r.GET("/slots", h.ListSlots)
}

func (h *Handler) GetConfig(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cfg, err := h.service.Get(c.Request.Context(), professionalID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cfg)
}

func (h *Handler) PutConfig(c *gin.Context) {
	professionalID, err := handler.ProfessionalID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, middleware.BindingError(err))
		return
	}

	cfg, err := h.service.Put(c.Request.Context(), professionalID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cfg)
}

func (h *Handler) ListSlots(c *gin.Context) {
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

	availableOnly := false
	if v := c.Query("available_only"); v != "" {
		availableOnly, err = strconv.ParseBool(v)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("available_only must be a boolean", err))
			return
		}
	}

	slots, err := h.service.ListSlots(c.Request.Context(), professionalID, dates, availableOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}
