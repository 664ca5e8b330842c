package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

type appointmentStore interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error)
	WithFacultyLock(ctx context.Context, facultyID string, fn func(tx repository.AppointmentTx) error) error
	WithAppointmentLock(ctx context.Context, id string, fn func(tx repository.AppointmentTx, current *models.Appointment) error) error
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// BookAppointmentRequest is a student's request for a meeting window.
type BookAppointmentRequest struct {
	FacultyID string `json:"faculty" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

// UpdateStatusRequest moves an appointment through its lifecycle.
type UpdateStatusRequest struct {
	Status  models.AppointmentStatus `json:"status" validate:"required"`
	Notes   *string                  `json:"notes"`
	Minutes *string                  `json:"minutesOfMeeting"`
}

// AppointmentConfig tunes booking validation.
type AppointmentConfig struct {
	// AllowBackToBack lets a booking start exactly when another ends.
	AllowBackToBack bool
}

// AppointmentService validates bookings and drives the appointment state machine.
type AppointmentService struct {
	appointments appointmentStore
	users        userLookup
	cache        cacheInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	config       AppointmentConfig
}

// NewAppointmentService constructs the appointment service. cache and metrics may be nil.
func NewAppointmentService(appointments appointmentStore, users userLookup, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AppointmentConfig) *AppointmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AppointmentService{
		appointments: appointments,
		users:        users,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		config:       config,
	}
}

// Book creates a pending appointment when the window is free and inside the faculty member's
// declared availability, and notifies the faculty member. The checks and both inserts happen in a
// single transaction serialised per faculty member.
func (s *AppointmentService) Book(ctx context.Context, actor models.Actor, req BookAppointmentRequest) (*models.Appointment, error) {
	if actor.Role != models.RoleStudent {
		s.metrics.ObserveBooking(BookingOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can book appointments")
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.ObserveBooking(BookingOutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "faculty, date, startTime, endTime and reason are required")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		s.metrics.ObserveBooking(BookingOutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be formatted as YYYY-MM-DD")
	}
	window, err := models.ParseWindow(req.StartTime, req.EndTime)
	if err != nil {
		s.metrics.ObserveBooking(BookingOutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "startTime and endTime must be HH:MM with startTime before endTime")
	}

	faculty, err := s.users.FindByID(ctx, req.FacultyID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.metrics.ObserveBooking(BookingOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if faculty == nil || faculty.Role != models.RoleFaculty {
		s.metrics.ObserveBooking(BookingOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty member not found")
	}

	appointment := &models.Appointment{
		StudentID: actor.UserID,
		FacultyID: faculty.ID,
		Date:      date,
		StartTime: window.Start.String(),
		EndTime:   window.End.String(),
		Status:    models.StatusPending,
		Reason:    req.Reason,
		Kind:      models.KindInPerson,
	}
	inclusive := !s.config.AllowBackToBack

	err = s.appointments.WithFacultyLock(ctx, faculty.ID, func(tx repository.AppointmentTx) error {
		existing, err := tx.ListActiveOnDate(ctx, faculty.ID, date)
		if err != nil {
			return err
		}
		for _, other := range existing {
			otherWindow, err := other.Window()
			if err != nil {
				return fmt.Errorf("appointment %s has a malformed window: %w", other.ID, err)
			}
			if otherWindow.Overlaps(window, inclusive) {
				return appErrors.Clone(appErrors.ErrAppointmentConflict, "")
			}
		}

		slots, err := tx.ListSlotsOnDate(ctx, faculty.ID, date)
		if err != nil {
			return err
		}
		slot := coveringSlot(slots, date, window)
		if slot == nil {
			return appErrors.Clone(appErrors.ErrOutsideAvailability, "")
		}
		appointment.Kind = slot.Kind
		appointment.Location = slot.Location

		if err := tx.Insert(ctx, appointment); err != nil {
			return err
		}

		notification := &models.Notification{
			RecipientID:   faculty.ID,
			SenderID:      stringPtr(actor.UserID),
			Type:          models.NotificationRequest,
			Content:       fmt.Sprintf("%s has requested an appointment on %s at %s", displayName(actor.Name, "A student"), date, appointment.StartTime),
			AppointmentID: stringPtr(appointment.ID),
		}
		return tx.InsertNotification(ctx, notification)
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			switch {
			case errors.Is(err, appErrors.ErrAppointmentConflict):
				s.metrics.ObserveBooking(BookingOutcomeConflict)
			case errors.Is(err, appErrors.ErrOutsideAvailability):
				s.metrics.ObserveBooking(BookingOutcomeOutsideAvailability)
			default:
				s.metrics.ObserveBooking(BookingOutcomeRejected)
			}
			return nil, appErr
		}
		s.metrics.ObserveBooking(BookingOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book appointment")
	}

	s.metrics.ObserveBooking(BookingOutcomeCreated)
	s.metrics.ObserveNotification(models.NotificationRequest)
	s.invalidateStats(ctx)
	s.logger.Info("appointment booked",
		zap.String("appointment_id", appointment.ID),
		zap.String("student_id", appointment.StudentID),
		zap.String("faculty_id", appointment.FacultyID),
		zap.String("date", appointment.Date.String()),
		zap.String("start", appointment.StartTime),
		zap.String("end", appointment.EndTime),
	)
	return appointment, nil
}

// UpdateStatus applies a status transition on behalf of the actor and notifies the counterparty.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req UpdateStatusRequest) (*models.AppointmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status is required")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	if req.Minutes != nil && req.Status != models.StatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "minutesOfMeeting can only be recorded when completing an appointment")
	}

	var (
		from         models.AppointmentStatus
		notification *models.Notification
	)
	err := s.appointments.WithAppointmentLock(ctx, id, func(tx repository.AppointmentTx, current *models.Appointment) error {
		if err := authorizeTransition(actor, current, req.Status); err != nil {
			return err
		}
		if !current.Status.CanTransition(req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot change status from %s to %s", current.Status, req.Status))
		}

		from = current.Status
		current.Status = req.Status
		if req.Notes != nil {
			current.Notes = req.Notes
		}
		if req.Minutes != nil {
			current.Minutes = req.Minutes
		}
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}

		notification = transitionNotification(actor, current)
		if notification == nil {
			return nil
		}
		return tx.InsertNotification(ctx, notification)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}

	s.metrics.ObserveTransition(from, req.Status)
	if notification != nil {
		s.metrics.ObserveNotification(notification.Type)
	}
	s.invalidateStats(ctx)
	s.logger.Info("appointment status updated",
		zap.String("appointment_id", id),
		zap.String("actor_id", actor.UserID),
		zap.String("from", string(from)),
		zap.String("to", string(req.Status)),
	)

	detail, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload appointment")
	}
	return detail, nil
}

// ListMine returns the actor's appointments: students see their requests, faculty see requests
// addressed to them and admins see everything. An empty status does not filter.
func (s *AppointmentService) ListMine(ctx context.Context, actor models.Actor, status models.AppointmentStatus) ([]models.AppointmentDetail, error) {
	if status != "" && !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
	}
	filter := models.AppointmentFilter{Status: status}
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleFaculty:
		filter.FacultyID = actor.UserID
	case models.RoleAdmin:
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown role")
	}

	items, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	if items == nil {
		items = []models.AppointmentDetail{}
	}
	return items, nil
}

// Get returns one appointment visible to the actor.
func (s *AppointmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.AppointmentDetail, error) {
	detail, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if detail.StudentID != actor.UserID && detail.FacultyID != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authorized to view this appointment")
	}
	return detail, nil
}

func (s *AppointmentService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, statsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}

// coveringSlot returns the first slot that applies on date and fully contains window.
func coveringSlot(slots []models.AvailabilitySlot, date models.Date, window models.Window) *models.AvailabilitySlot {
	for i := range slots {
		if !slots[i].AppliesOn(date) {
			continue
		}
		slotWindow, err := slots[i].Window()
		if err != nil {
			continue
		}
		if slotWindow.Contains(window) {
			return &slots[i]
		}
	}
	return nil
}

func authorizeTransition(actor models.Actor, current *models.Appointment, next models.AppointmentStatus) error {
	isStudent := actor.UserID == current.StudentID
	isFaculty := actor.UserID == current.FacultyID
	if !isStudent && !isFaculty && !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not authorized to update this appointment")
	}
	switch next {
	case models.StatusApproved, models.StatusRejected, models.StatusCompleted:
		if !isFaculty && !actor.IsAdmin() {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("only the faculty member can mark an appointment %s", next))
		}
	}
	return nil
}

// transitionNotification builds the notice for the other party of a transition, or nil when the
// transition notifies nobody.
func transitionNotification(actor models.Actor, apt *models.Appointment) *models.Notification {
	var (
		recipient string
		kind      models.NotificationType
		content   string
	)
	when := fmt.Sprintf("%s at %s", apt.Date, apt.StartTime)
	switch apt.Status {
	case models.StatusApproved:
		recipient, kind = apt.StudentID, models.NotificationApproved
		content = fmt.Sprintf("Your appointment on %s has been approved by %s", when, displayName(actor.Name, "your faculty member"))
	case models.StatusRejected:
		recipient, kind = apt.StudentID, models.NotificationRejected
		content = fmt.Sprintf("Your appointment on %s has been rejected by %s", when, displayName(actor.Name, "your faculty member"))
	case models.StatusCanceled:
		kind = models.NotificationCanceled
		if actor.UserID == apt.StudentID {
			recipient = apt.FacultyID
			content = fmt.Sprintf("%s has canceled the appointment on %s", displayName(actor.Name, "The student"), when)
		} else {
			recipient = apt.StudentID
			content = fmt.Sprintf("Your appointment on %s has been canceled by %s", when, displayName(actor.Name, "the faculty member"))
		}
	default:
		return nil
	}
	return &models.Notification{
		RecipientID:   recipient,
		SenderID:      stringPtr(actor.UserID),
		Type:          kind,
		Content:       content,
		AppointmentID: stringPtr(apt.ID),
	}
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
