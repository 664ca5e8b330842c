package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
)

func TestNotificationListByRecipient(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN users u ON u.id = n.sender_id")).
		WithArgs("fac-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "recipient_id", "sender_id", "sender_name", "type", "content", "read", "appointment_id", "created_at"}).
			AddRow("n-1", "fac-1", "stu-1", "Sam", "appointment_request", "New appointment request from Sam", false, "apt-1", now))

	items, err := repo.ListByRecipient(context.Background(), "fac-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].SenderName)
	assert.Equal(t, "Sam", *items[0].SenderName)
	assert.Equal(t, models.NotificationRequest, items[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationCountUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE")).
		WithArgs("fac-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.CountUnread(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestNotificationMarkAllRead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE")).
		WithArgs("fac-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	updated, err := repo.MarkAllRead(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(sqlmock.AnyArg(), "stu-1", nil, "system", "Welcome", false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	n := &models.Notification{RecipientID: "stu-1", Type: models.NotificationSystem, Content: "Welcome"}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
