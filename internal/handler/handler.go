// Package handler holds request helpers shared by the HTTP handlers.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/middleware"
	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

// ProfessionalID returns the professional the caller acts for.
func ProfessionalID(c *gin.Context) (uuid.UUID, error) {
	p, ok := middleware.Principal(c)
	if !ok {
		return uuid.Nil, errors.Unauthorized(nil)
	}
	if p.ProfessionalID == uuid.Nil {
		return uuid.Nil, errors.Forbidden("caller is not linked to a professional", nil)
	}
	return p.ProfessionalID, nil
}

// PathID parses the named path parameter as a UUID.
func PathID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.Validation("invalid "+name, err)
	}
	return id, nil
}

// QueryDateRange reads start_date and end_date (YYYY-MM-DD). Both are
// required.
func QueryDateRange(c *gin.Context) (model.DateRange, error) {
	start, end := c.Query("start_date"), c.Query("end_date")
	if start == "" || end == "" {
		return model.DateRange{}, errors.Validation("start_date and end_date are required", nil)
	}
	dates, err := model.ParseDateRange(start, end)
	if err != nil {
		return model.DateRange{}, errors.Validation("dates must use YYYY-MM-DD", err)
	}
	return dates, nil
}
