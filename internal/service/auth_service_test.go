package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	createErr error
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "generated-" + user.Email
	}
	m.users[user.ID] = user
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "test",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := newMockAuthRepo(&models.User{ID: "123", Name: "Sam", Email: "sam@uni.edu", PasswordHash: string(password), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "SAM@uni.edu", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "123", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "Sam", claims.Name)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := newMockAuthRepo(&models.User{ID: "123", Email: "sam@uni.edu", PasswordHash: string(password), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "sam@uni.edu", Password: "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@uni.edu", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceRegisterStudentByDefault(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Sam", Email: "Sam@Uni.edu", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, "sam@uni.edu", res.User.Email)
	assert.NotEmpty(t, res.Token)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.PasswordHash), []byte("secret1")))
}

func TestAuthServiceRegisterFacultyRequiresDepartment(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: "ada@uni.edu", Password: "secret1", Role: models.RoleFaculty})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	res, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Ada", Email: "ada@uni.edu", Password: "secret1", Role: models.RoleFaculty, Department: "CS", Position: "Professor"})
	require.NoError(t, err)
	assert.Equal(t, "CS", res.User.Department)
}

func TestAuthServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Root", Email: "root@uni.edu", Password: "secret1", Role: models.RoleAdmin})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "1", Email: "sam@uni.edu"})
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Sam", Email: "sam@uni.edu", Password: "secret1"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	racing := newMockAuthRepo()
	racing.createErr = repository.ErrDuplicateEmail
	_, err = newTestAuthService(racing).Register(context.Background(), models.RegisterRequest{Name: "Sam", Email: "sam@uni.edu", Password: "secret1"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	res, err := svc.Register(context.Background(), models.RegisterRequest{Name: "Sam", Email: "sam@uni.edu", Password: "secret1"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(res.Token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
