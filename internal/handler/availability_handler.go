package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/service"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

type availabilityService interface {
	Create(ctx context.Context, actor models.Actor, req service.AvailabilityRequest) (*models.AvailabilitySlot, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error)
	ListMine(ctx context.Context, actor models.Actor) ([]models.AvailabilitySlot, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.AvailabilityRequest) (*models.AvailabilitySlot, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// AvailabilityHandler manages faculty availability slots.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler builds the handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Create godoc
// @Summary Declare availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body service.AvailabilityRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /availability [post]
func (h *AvailabilityHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AvailabilityRequest
	if !bindJSON(c, &req, "invalid availability payload") {
		return
	}

	slot, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// ListMine godoc
// @Summary My availability
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/me [get]
func (h *AvailabilityHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	slots, err := h.service.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// ListByFaculty godoc
// @Summary Faculty availability
// @Tags Availability
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /availability/faculty/{id} [get]
func (h *AvailabilityHandler) ListByFaculty(c *gin.Context) {
	slots, err := h.service.ListByFaculty(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Update godoc
// @Summary Update availability slot
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.AvailabilityRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/{id} [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.AvailabilityRequest
	if !bindJSON(c, &req, "invalid availability payload") {
		return
	}

	slot, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Delete godoc
// @Summary Remove availability slot
// @Tags Availability
// @Param id path string true "Slot ID"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/{id} [delete]
func (h *AvailabilityHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
