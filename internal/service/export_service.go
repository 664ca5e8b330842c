package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
	"github.com/noah-isme/faculty-appointments-api/pkg/export"
)

var appointmentExportHeaders = []string{"Date", "Start", "End", "Status", "Type", "Student", "Faculty", "Reason", "Minutes"}

type appointmentLister interface {
	ListMine(ctx context.Context, actor models.Actor, status models.AppointmentStatus) ([]models.AppointmentDetail, error)
}

type renderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders appointment listings as downloadable files.
type ExportService struct {
	appointments appointmentLister
	renderers    map[string]renderer
	logger       *zap.Logger
	now          func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(appointments appointmentLister, logger *zap.Logger, csv, pdf renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		appointments: appointments,
		renderers:    map[string]renderer{"csv": csv, "pdf": pdf},
		logger:       logger,
		now:          time.Now,
	}
}

// Appointments renders the actor's appointment list in the requested format (csv or pdf).
func (s *ExportService) Appointments(ctx context.Context, actor models.Actor, format string, status models.AppointmentStatus) (*ExportFile, error) {
	if actor.Role != models.RoleFaculty && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty and admins can export appointments")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	items, err := s.appointments.ListMine(ctx, actor, status)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: appointmentExportHeaders}
	for _, item := range items {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":    item.Date.String(),
			"Start":   item.StartTime,
			"End":     item.EndTime,
			"Status":  string(item.Status),
			"Type":    string(item.Kind),
			"Student": item.Student.Name,
			"Faculty": item.Faculty.Name,
			"Reason":  item.Reason,
			"Minutes": deref(item.Minutes),
		})
	}

	payload, err := r.Render(dataset, "Appointments")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("appointments_%s.%s", s.now().UTC().Format("20060102_150405"), r.Extension())
	s.logger.Info("appointments exported", zap.String("actor_id", actor.UserID), zap.String("format", format), zap.Int("rows", len(items)))
	return &ExportFile{Filename: filename, ContentType: r.ContentType(), Payload: payload}, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
