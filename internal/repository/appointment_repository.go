package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
)

const appointmentColumns = `id, student_id, faculty_id, date, start_time, end_time, status, reason, notes, minutes, kind, location, created_at, updated_at`

const appointmentDetailSelect = `SELECT a.id, a.student_id, a.faculty_id, a.date, a.start_time, a.end_time, a.status, a.reason, a.notes, a.minutes, a.kind, a.location, a.created_at, a.updated_at,
s.name AS student_name, s.email AS student_email,
f.name AS faculty_name, f.email AS faculty_email, f.department AS faculty_department, f.position AS faculty_position
FROM appointments a
JOIN users s ON s.id = a.student_id
JOIN users f ON f.id = a.faculty_id`

// AppointmentTx exposes the statements that must run inside a locked appointment transaction.
type AppointmentTx interface {
	ListActiveOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.Appointment, error)
	ListSlotsOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.AvailabilitySlot, error)
	Insert(ctx context.Context, appointment *models.Appointment) error
	UpdateStatus(ctx context.Context, appointment *models.Appointment) error
	InsertNotification(ctx context.Context, notification *models.Notification) error
}

// AppointmentRepository persists appointments and serialises booking decisions per faculty member.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs an appointment repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// List returns appointments joined with participant details, newest date first.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)))
	}
	if filter.FacultyID != "" {
		args = append(args, filter.FacultyID)
		conditions = append(conditions, fmt.Sprintf("a.faculty_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}

	query := appointmentDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.date ASC, a.start_time ASC"

	var items []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	for i := range items {
		items[i].Hydrate()
	}
	return items, nil
}

// FindByID loads a single appointment with participant details.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	query := appointmentDetailSelect + " WHERE a.id = $1"
	var detail models.AppointmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if isMissingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	detail.Hydrate()
	return &detail, nil
}

// WithFacultyLock runs fn in a transaction holding an advisory lock on the faculty member, so
// concurrent bookings against the same calendar are decided one at a time. The transaction
// commits when fn returns nil.
func (r *AppointmentRepository) WithFacultyLock(ctx context.Context, facultyID string, fn func(tx AppointmentTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, facultyID); err != nil {
		return fmt.Errorf("lock faculty calendar: %w", err)
	}

	if err = fn(&appointmentTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking transaction: %w", err)
	}
	return nil
}

// WithAppointmentLock loads the appointment FOR UPDATE and runs fn with it inside a transaction.
// sql.ErrNoRows is returned unwrapped when the appointment does not exist or the id is malformed.
func (r *AppointmentRepository) WithAppointmentLock(ctx context.Context, id string, fn func(tx AppointmentTx, current *models.Appointment) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin appointment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Appointment
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, query, id); err != nil {
		if isMissingRow(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock appointment: %w", err)
	}

	if err = fn(&appointmentTx{tx: tx}, &current); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit appointment transaction: %w", err)
	}
	return nil
}

type appointmentTx struct {
	tx *sqlx.Tx
}

func (t *appointmentTx) ListActiveOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.Appointment, error) {
	active := make([]string, 0, len(models.ActiveStatuses))
	for _, status := range models.ActiveStatuses {
		active = append(active, string(status))
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE faculty_id = $1 AND date = $2 AND status = ANY($3) ORDER BY start_time`
	var items []models.Appointment
	if err := t.tx.SelectContext(ctx, &items, query, facultyID, date, pq.Array(active)); err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	return items, nil
}

func (t *appointmentTx) ListSlotsOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.AvailabilitySlot, error) {
	return listSlotsOnDate(ctx, t.tx, facultyID, date)
}

func (t *appointmentTx) Insert(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now

	const query = `INSERT INTO appointments (id, student_id, faculty_id, date, start_time, end_time, status, reason, notes, minutes, kind, location, created_at, updated_at)
VALUES (:id, :student_id, :faculty_id, :date, :start_time, :end_time, :status, :reason, :notes, :minutes, :kind, :location, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, appointment); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (t *appointmentTx) UpdateStatus(ctx context.Context, appointment *models.Appointment) error {
	appointment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET status = :status, notes = :notes, minutes = :minutes, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, appointment); err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return nil
}

func (t *appointmentTx) InsertNotification(ctx context.Context, notification *models.Notification) error {
	return insertNotification(ctx, t.tx, notification)
}

// CountByStatus groups every appointment by status.
func (r *AppointmentRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM appointments GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count appointments by status: %w", err)
	}
	return rows, nil
}
