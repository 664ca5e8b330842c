package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/service"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

type appointmentService interface {
	Book(ctx context.Context, actor models.Actor, req service.BookAppointmentRequest) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req service.UpdateStatusRequest) (*models.AppointmentDetail, error)
	ListMine(ctx context.Context, actor models.Actor, status models.AppointmentStatus) ([]models.AppointmentDetail, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.AppointmentDetail, error)
}

type appointmentExporter interface {
	Appointments(ctx context.Context, actor models.Actor, format string, status models.AppointmentStatus) (*service.ExportFile, error)
}

// AppointmentHandler exposes booking, status and listing endpoints.
type AppointmentHandler struct {
	service  appointmentService
	exporter appointmentExporter
}

// NewAppointmentHandler builds the handler. exporter may be nil when exports are disabled.
func NewAppointmentHandler(svc appointmentService, exporter appointmentExporter) *AppointmentHandler {
	return &AppointmentHandler{service: svc, exporter: exporter}
}

// Book godoc
// @Summary Request an appointment
// @Description Books a pending appointment when the window is free and inside the faculty's availability
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.BookAppointmentRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments [post]
func (h *AppointmentHandler) Book(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.BookAppointmentRequest
	if !bindJSON(c, &req, "invalid appointment payload") {
		return
	}

	apt, err := h.service.Book(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, apt)
}

// ListMine godoc
// @Summary My appointments
// @Description Students see their requests, faculty see requests addressed to them, admins see all
// @Tags Appointments
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/me [get]
func (h *AppointmentHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	items, err := h.service.ListMine(c.Request.Context(), actor, models.AppointmentStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Appointment detail
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, apt, nil)
}

// UpdateStatus godoc
// @Summary Change appointment status
// @Description approve, reject, cancel or complete an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/{id} [put]
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, apt, nil)
}

// Export godoc
// @Summary Export appointments
// @Tags Appointments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /appointments/export [get]
func (h *AppointmentHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	file, err := h.exporter.Appointments(c.Request.Context(), actor, c.Query("format"), models.AppointmentStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
