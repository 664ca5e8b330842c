package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "name", "email", "password_hash", "role", "department", "position", "bio", "profile_image", "created_at", "updated_at"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "Dr. Ada", "ada@uni.edu", "hash", string(models.RoleFaculty), "CS", "Professor", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("ada@uni.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "ada@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "ada@uni.edu", user.Email)
	assert.Equal(t, models.RoleFaculty, user.Role)
	assert.Equal(t, "CS", user.Department)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Name: "Sam", Email: "sam@uni.edu", PasswordHash: "hash", Role: models.RoleStudent})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Name: "Sam", Email: "sam@uni.edu", PasswordHash: "hash", Role: models.RoleStudent}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "Dr. Ada", "ada@uni.edu", "hash", string(models.RoleFaculty), "CS", "Professor", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND role = $1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs(models.RoleFaculty).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1")).WillReturnRows(countRows)

	role := models.RoleFaculty
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUsersByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT role, COUNT(*) AS count FROM users GROUP BY role")).
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).AddRow("student", 4).AddRow("faculty", 2))

	counts, err := repo.CountByRole(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.RoleStudent, counts[0].Role)
	assert.Equal(t, 4, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
