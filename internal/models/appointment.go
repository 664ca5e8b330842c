package models

import "time"

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusApproved  AppointmentStatus = "approved"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCanceled  AppointmentStatus = "canceled"
	StatusCompleted AppointmentStatus = "completed"
)

// ActiveStatuses are the statuses that occupy a faculty member's time.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusApproved}

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCanceled},
	StatusApproved: {StatusCanceled, StatusCompleted},
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether moving from s to next is allowed.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is a student-requested meeting with a faculty member.
type Appointment struct {
	ID        string            `db:"id" json:"id"`
	StudentID string            `db:"student_id" json:"student"`
	FacultyID string            `db:"faculty_id" json:"faculty"`
	Date      Date              `db:"date" json:"date"`
	StartTime string            `db:"start_time" json:"startTime"`
	EndTime   string            `db:"end_time" json:"endTime"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Reason    string            `db:"reason" json:"reason"`
	Notes     *string           `db:"notes" json:"notes,omitempty"`
	Minutes   *string           `db:"minutes" json:"minutesOfMeeting,omitempty"`
	Kind      AppointmentKind   `db:"kind" json:"type"`
	Location  *string           `db:"location" json:"location,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time         `db:"updated_at" json:"updatedAt"`
}

// Window parses the appointment's time range.
func (a Appointment) Window() (Window, error) {
	return ParseWindow(a.StartTime, a.EndTime)
}

// AppointmentDetail is an appointment joined with its participants.
type AppointmentDetail struct {
	Appointment
	StudentName       string `db:"student_name" json:"-"`
	StudentEmail      string `db:"student_email" json:"-"`
	FacultyName       string `db:"faculty_name" json:"-"`
	FacultyEmail      string `db:"faculty_email" json:"-"`
	FacultyDepartment string `db:"faculty_department" json:"-"`
	FacultyPosition   string `db:"faculty_position" json:"-"`

	Student UserSummary `db:"-" json:"studentInfo"`
	Faculty UserSummary `db:"-" json:"facultyInfo"`
}

// Hydrate fills the participant summaries from the joined columns.
func (d *AppointmentDetail) Hydrate() {
	d.Student = UserSummary{ID: d.StudentID, Name: d.StudentName, Email: d.StudentEmail}
	d.Faculty = UserSummary{
		ID:         d.FacultyID,
		Name:       d.FacultyName,
		Email:      d.FacultyEmail,
		Department: d.FacultyDepartment,
		Position:   d.FacultyPosition,
	}
}

// AppointmentFilter scopes appointment listings. Empty fields do not filter.
type AppointmentFilter struct {
	StudentID string
	FacultyID string
	Status    AppointmentStatus
}
