package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
)

const availabilityColumns = `id, faculty_id, day_of_week, date, start_time, end_time, is_recurring, kind, location, created_at, updated_at`

// AvailabilityRepository persists faculty availability slots.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByFaculty returns every slot of a faculty member in weekday then start-time order.
func (r *AvailabilityRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability_slots WHERE faculty_id = $1
ORDER BY array_position(ARRAY['Monday','Tuesday','Wednesday','Thursday','Friday','Saturday','Sunday'], day_of_week), date NULLS FIRST, start_time`
	var slots []models.AvailabilitySlot
	if err := r.db.SelectContext(ctx, &slots, query, facultyID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return slots, nil
}

// ListOnDate returns the slots that apply to a calendar date.
func (r *AvailabilityRepository) ListOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.AvailabilitySlot, error) {
	return listSlotsOnDate(ctx, r.db, facultyID, date)
}

// FindByID returns a slot by identifier.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability_slots WHERE id = $1`
	var slot models.AvailabilitySlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if isMissingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find availability: %w", err)
	}
	return &slot, nil
}

// Create inserts a slot.
func (r *AvailabilityRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO availability_slots (id, faculty_id, day_of_week, date, start_time, end_time, is_recurring, kind, location, created_at, updated_at)
VALUES (:id, :faculty_id, :day_of_week, :date, :start_time, :end_time, :is_recurring, :kind, :location, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a slot.
func (r *AvailabilityRepository) Update(ctx context.Context, slot *models.AvailabilitySlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE availability_slots SET day_of_week = :day_of_week, date = :date, start_time = :start_time, end_time = :end_time,
is_recurring = :is_recurring, kind = :kind, location = :location, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, slot)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a slot. Existing appointments are left untouched.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM availability_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the total number of slots.
func (r *AvailabilityRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM availability_slots`); err != nil {
		return 0, fmt.Errorf("count availability: %w", err)
	}
	return total, nil
}

func listSlotsOnDate(ctx context.Context, q sqlx.QueryerContext, facultyID string, date models.Date) ([]models.AvailabilitySlot, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availability_slots
WHERE faculty_id = $1 AND ((is_recurring AND day_of_week = $2) OR (NOT is_recurring AND date = $3))
ORDER BY start_time`
	var slots []models.AvailabilitySlot
	if err := sqlx.SelectContext(ctx, q, &slots, query, facultyID, date.DayOfWeek(), date); err != nil {
		return nil, fmt.Errorf("list availability on date: %w", err)
	}
	return slots, nil
}
