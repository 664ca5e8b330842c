package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/faculty-appointments-api/internal/handler"
	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/service"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type directoryStub struct{}

func (directoryStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	return []models.User{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (directoryStub) Get(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (directoryStub) ListFaculty(ctx context.Context, search string) ([]models.User, error) {
	return []models.User{{ID: "fac-1", Role: models.RoleFaculty}}, nil
}

func (directoryStub) GetFaculty(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Role: models.RoleFaculty}, nil
}

func (directoryStub) UpdateProfile(ctx context.Context, actor models.Actor, req service.UpdateProfileRequest) (*models.User, error) {
	return &models.User{ID: actor.UserID}, nil
}

func newTestEngine(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := tokenTable{
		"student": {UserID: "stu-1", Role: models.RoleStudent},
		"admin":   {UserID: "adm-1", Role: models.RoleAdmin},
	}
	Register(r, Handlers{
		Auth:          handler.NewAuthHandler(nil),
		Users:         handler.NewUserHandler(directoryStub{}),
		Appointments:  handler.NewAppointmentHandler(nil, nil),
		Availability:  handler.NewAvailabilityHandler(nil),
		Notifications: handler.NewNotificationHandler(nil),
		Stats:         handler.NewStatsHandler(nil),
		Metrics:       handler.NewMetricsHandler(nil, nil),
	}, tokens, opts)
	return r
}

func TestRegisterGatesRoutes(t *testing.T) {
	r := newTestEngine(Options{Prefix: "/api"})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "health", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "faculty directory is public", method: http.MethodGet, path: "/api/users/faculty", want: http.StatusOK},
		{name: "profile needs token", method: http.MethodGet, path: "/api/users/profile", want: http.StatusUnauthorized},
		{name: "profile with token", method: http.MethodGet, path: "/api/users/profile", token: "student", want: http.StatusOK},
		{name: "bad token", method: http.MethodGet, path: "/api/appointments/me", token: "forged", want: http.StatusUnauthorized},
		{name: "users list is admin only", method: http.MethodGet, path: "/api/users", token: "student", want: http.StatusForbidden},
		{name: "admin lists users", method: http.MethodGet, path: "/api/users", token: "admin", want: http.StatusOK},
		{name: "stats is admin only", method: http.MethodGet, path: "/api/stats", token: "student", want: http.StatusForbidden},
		{name: "admins cannot book", method: http.MethodPost, path: "/api/appointments", token: "admin", want: http.StatusForbidden},
		{name: "students cannot declare availability", method: http.MethodPost, path: "/api/availability", token: "student", want: http.StatusForbidden},
		{name: "exports disabled", method: http.MethodGet, path: "/api/appointments/export", token: "admin", want: http.StatusNotFound},
		{name: "metrics disabled", method: http.MethodGet, path: "/metrics", want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRegisterOptionalGroups(t *testing.T) {
	r := newTestEngine(Options{Prefix: "/api", EnableExports: true, EnableMetrics: true})

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/export", nil)
	req.Header.Set("Authorization", "Bearer student")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
