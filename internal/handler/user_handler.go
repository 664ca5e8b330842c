package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/service"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	ListFaculty(ctx context.Context, search string) ([]models.User, error)
	GetFaculty(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, actor models.Actor, req service.UpdateProfileRequest) (*models.User, error)
}

// UserHandler serves profile, faculty directory and admin user listing endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param search query string false "Search term"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	users, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Profile godoc
// @Summary Current user profile
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /users/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	user, err := h.service.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateProfile godoc
// @Summary Update current user profile
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body service.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// ListFaculty godoc
// @Summary Faculty directory
// @Tags Users
// @Produce json
// @Param search query string false "Name, department or position"
// @Success 200 {object} response.Envelope
// @Router /users/faculty [get]
func (h *UserHandler) ListFaculty(c *gin.Context) {
	users, err := h.service.ListFaculty(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// GetFaculty godoc
// @Summary Faculty member detail
// @Tags Users
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/faculty/{id} [get]
func (h *UserHandler) GetFaculty(c *gin.Context) {
	user, err := h.service.GetFaculty(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
