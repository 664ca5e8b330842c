package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/handler"
	"github.com/noah-isme/faculty-appointments-api/internal/middleware"
	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

// Handlers bundles the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Appointments  *handler.AppointmentHandler
	Availability  *handler.AvailabilityHandler
	Notifications *handler.NotificationHandler
	Stats         *handler.StatsHandler
	Metrics       *handler.MetricsHandler
}

// Options toggles optional route groups.
type Options struct {
	Prefix        string
	EnableExports bool
	EnableMetrics bool
}

// Register mounts the ops endpoints at the root and the API under opts.Prefix.
func Register(r *gin.Engine, h Handlers, tokens middleware.TokenValidator, opts Options) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if opts.EnableMetrics {
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(opts.Prefix)
	api.Use(middleware.ResponseMeta())

	// Public
	users := api.Group("/users")
	users.POST("/register", h.Auth.Register)
	users.POST("/login", h.Auth.Login)
	users.GET("/faculty", h.Users.ListFaculty)
	users.GET("/faculty/:id", h.Users.GetFaculty)
	api.GET("/availability/faculty/:id", h.Availability.ListByFaculty)

	authed := api.Group("")
	authed.Use(middleware.JWT(tokens))

	authed.GET("/users/profile", h.Users.Profile)
	authed.PUT("/users/profile", h.Users.UpdateProfile)
	authed.GET("/users", middleware.RequireRoles(models.RoleAdmin), h.Users.List)

	appointments := authed.Group("/appointments")
	appointments.POST("", middleware.RequireRoles(models.RoleStudent), h.Appointments.Book)
	appointments.GET("/me", h.Appointments.ListMine)
	export := featureDisabled("appointment exports are disabled")
	if opts.EnableExports {
		export = h.Appointments.Export
	}
	appointments.GET("/export", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), export)
	appointments.GET("/:id", h.Appointments.Get)
	appointments.PUT("/:id", h.Appointments.UpdateStatus)

	availability := authed.Group("/availability")
	availability.Use(middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin))
	availability.POST("", h.Availability.Create)
	availability.GET("/me", middleware.RequireRoles(models.RoleFaculty), h.Availability.ListMine)
	availability.PUT("/:id", h.Availability.Update)
	availability.DELETE("/:id", h.Availability.Delete)

	notifications := authed.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.PUT("/read-all", h.Notifications.MarkAllAsRead)
	notifications.PUT("/:id", h.Notifications.MarkAsRead)

	stats := authed.Group("/stats")
	stats.Use(middleware.RequireRoles(models.RoleAdmin))
	stats.GET("", h.Stats.Overview)
	stats.GET("/system", h.Stats.System)
}

func featureDisabled(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, message))
	}
}
