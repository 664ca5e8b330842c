package models

import "time"

// AppointmentKind distinguishes in-person meetings from virtual ones.
type AppointmentKind string

const (
	KindInPerson AppointmentKind = "in-person"
	KindVirtual  AppointmentKind = "virtual"
)

// AvailabilitySlot is a faculty-declared open window, recurring weekly or tied to one date.
type AvailabilitySlot struct {
	ID          string          `db:"id" json:"id"`
	FacultyID   string          `db:"faculty_id" json:"faculty"`
	DayOfWeek   string          `db:"day_of_week" json:"dayOfWeek"`
	Date        *Date           `db:"date" json:"date,omitempty"`
	StartTime   string          `db:"start_time" json:"startTime"`
	EndTime     string          `db:"end_time" json:"endTime"`
	IsRecurring bool            `db:"is_recurring" json:"isRecurring"`
	Kind        AppointmentKind `db:"kind" json:"type"`
	Location    *string         `db:"location" json:"location,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Window parses the slot's declared time range.
func (s AvailabilitySlot) Window() (Window, error) {
	return ParseWindow(s.StartTime, s.EndTime)
}

// AppliesOn reports whether the slot is declared for the given date: recurring slots match on
// weekday, one-off slots on the exact date.
func (s AvailabilitySlot) AppliesOn(date Date) bool {
	if s.IsRecurring {
		return s.DayOfWeek == date.DayOfWeek()
	}
	return s.Date != nil && s.Date.String() == date.String()
}
