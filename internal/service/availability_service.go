package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

type availabilityRepository interface {
	ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error)
	FindByID(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	Update(ctx context.Context, slot *models.AvailabilitySlot) error
	Delete(ctx context.Context, id string) error
}

// AvailabilityRequest declares or edits a slot. On update, empty fields keep their current value.
type AvailabilityRequest struct {
	FacultyID   string                 `json:"faculty"`
	DayOfWeek   string                 `json:"dayOfWeek"`
	StartTime   string                 `json:"startTime"`
	EndTime     string                 `json:"endTime"`
	IsRecurring *bool                  `json:"isRecurring"`
	Date        string                 `json:"date"`
	Kind        models.AppointmentKind `json:"type" validate:"omitempty,oneof=in-person virtual"`
	Location    *string                `json:"location"`
}

// AvailabilityService manages faculty availability slots.
type AvailabilityService struct {
	repo      availabilityRepository
	users     userLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an availability service.
func NewAvailabilityService(repo availabilityRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create declares a new slot. Faculty create for themselves; admins may name a faculty member.
func (s *AvailabilityService) Create(ctx context.Context, actor models.Actor, req AvailabilityRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	facultyID := actor.UserID
	switch actor.Role {
	case models.RoleFaculty:
	case models.RoleAdmin:
		if req.FacultyID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "faculty is required when an admin creates availability")
		}
		facultyID = req.FacultyID
		if err := s.ensureFaculty(ctx, facultyID); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty can manage availability")
	}

	if req.StartTime == "" || req.EndTime == "" || req.IsRecurring == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime, endTime and isRecurring are required")
	}

	slot := &models.AvailabilitySlot{FacultyID: facultyID, Kind: models.KindInPerson}
	if err := applyAvailability(slot, req); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability")
	}
	s.logger.Info("availability created", zap.String("slot_id", slot.ID), zap.String("faculty_id", slot.FacultyID))
	return slot, nil
}

// ListByFaculty returns the public availability of a faculty member.
func (s *AvailabilityService) ListByFaculty(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error) {
	if err := s.ensureFaculty(ctx, facultyID); err != nil {
		return nil, err
	}
	return s.list(ctx, facultyID)
}

// ListMine returns the calling faculty member's slots.
func (s *AvailabilityService) ListMine(ctx context.Context, actor models.Actor) ([]models.AvailabilitySlot, error) {
	if actor.Role != models.RoleFaculty {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty have availability")
	}
	return s.list(ctx, actor.UserID)
}

// Update edits a slot owned by the actor, or any slot for admins.
func (s *AvailabilityService) Update(ctx context.Context, actor models.Actor, id string, req AvailabilityRequest) (*models.AvailabilitySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	slot, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := applyAvailability(slot, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
	}
	return slot, nil
}

// Delete removes a slot owned by the actor, or any slot for admins. Existing appointments stay.
func (s *AvailabilityService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability")
	}
	s.logger.Info("availability deleted", zap.String("slot_id", id), zap.String("actor_id", actor.UserID))
	return nil
}

func (s *AvailabilityService) list(ctx context.Context, facultyID string) ([]models.AvailabilitySlot, error) {
	slots, err := s.repo.ListByFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	if slots == nil {
		slots = []models.AvailabilitySlot{}
	}
	return slots, nil
}

func (s *AvailabilityService) owned(ctx context.Context, actor models.Actor, id string) (*models.AvailabilitySlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if slot.FacultyID != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authorized to modify this availability")
	}
	return slot, nil
}

func (s *AvailabilityService) ensureFaculty(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if user == nil || user.Role != models.RoleFaculty {
		return appErrors.Clone(appErrors.ErrNotFound, "faculty member not found")
	}
	return nil
}

// applyAvailability merges req into slot and re-checks the slot invariants.
func applyAvailability(slot *models.AvailabilitySlot, req AvailabilityRequest) error {
	if req.StartTime != "" {
		slot.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		slot.EndTime = req.EndTime
	}
	window, err := models.ParseWindow(slot.StartTime, slot.EndTime)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "startTime and endTime must be HH:MM with startTime before endTime")
	}
	slot.StartTime = window.Start.String()
	slot.EndTime = window.End.String()

	if req.IsRecurring != nil {
		slot.IsRecurring = *req.IsRecurring
	}
	if req.DayOfWeek != "" {
		day := models.NormalizeDayOfWeek(req.DayOfWeek)
		if day == "" {
			return appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be a weekday name such as Monday")
		}
		slot.DayOfWeek = day
	}
	if req.Date != "" {
		date, err := models.ParseDate(req.Date)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be formatted as YYYY-MM-DD")
		}
		slot.Date = &date
	}

	if slot.IsRecurring {
		slot.Date = nil
		if slot.DayOfWeek == "" {
			return appErrors.Clone(appErrors.ErrValidation, "dayOfWeek is required for recurring availability")
		}
	} else {
		if slot.Date == nil {
			return appErrors.Clone(appErrors.ErrValidation, "date is required for one-off availability")
		}
		slot.DayOfWeek = slot.Date.DayOfWeek()
	}

	if req.Kind != "" {
		slot.Kind = req.Kind
	}
	if req.Location != nil {
		slot.Location = req.Location
	}
	return nil
}
