package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/middleware"
	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

type statsService interface {
	Overview(ctx context.Context) (*models.StatsOverview, bool, error)
	System() models.SystemMetrics
}

// StatsHandler serves the admin dashboard numbers.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(svc statsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// Overview godoc
// @Summary Aggregate statistics
// @Description Appointment, user and availability counts. meta.cache_hit reports whether Redis served the payload.
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /stats [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	overview, cacheHit, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "cache_hit", cacheHit)
	response.JSON(c, http.StatusOK, overview, nil, middleware.Meta(c))
}

// System godoc
// @Summary Process metrics digest
// @Tags Stats
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/system [get]
func (h *StatsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.System(), nil)
}
