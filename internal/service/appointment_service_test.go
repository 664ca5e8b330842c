package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/internal/repository"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

// fakeAppointmentStore keeps appointments, slots and notifications in memory. Lock callbacks
// stage their writes and apply them only when the callback succeeds.
type fakeAppointmentStore struct {
	mu            sync.Mutex
	facultyLocks  map[string]*sync.Mutex
	appointments  map[string]*models.Appointment
	slots         []models.AvailabilitySlot
	notifications []models.Notification
	users         map[string]*models.User
	statusWrites  int
	seq           int
}

func newFakeAppointmentStore(users ...*models.User) *fakeAppointmentStore {
	store := &fakeAppointmentStore{
		facultyLocks: make(map[string]*sync.Mutex),
		appointments: make(map[string]*models.Appointment),
		users:        make(map[string]*models.User),
	}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (f *fakeAppointmentStore) FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := &models.AppointmentDetail{Appointment: *apt}
	if s, ok := f.users[apt.StudentID]; ok {
		detail.StudentName = s.Name
	}
	if fac, ok := f.users[apt.FacultyID]; ok {
		detail.FacultyName = fac.Name
	}
	detail.Hydrate()
	return detail, nil
}

func (f *fakeAppointmentStore) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.appointments))
	for id, apt := range f.appointments {
		if filter.StudentID != "" && apt.StudentID != filter.StudentID {
			continue
		}
		if filter.FacultyID != "" && apt.FacultyID != filter.FacultyID {
			continue
		}
		if filter.Status != "" && apt.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	f.mu.Unlock()

	var out []models.AppointmentDetail
	for _, id := range ids {
		detail, _ := f.FindByID(ctx, id)
		out = append(out, *detail)
	}
	return out, nil
}

func (f *fakeAppointmentStore) lockFor(facultyID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.facultyLocks[facultyID]
	if !ok {
		l = &sync.Mutex{}
		f.facultyLocks[facultyID] = l
	}
	return l
}

func (f *fakeAppointmentStore) WithFacultyLock(ctx context.Context, facultyID string, fn func(tx repository.AppointmentTx) error) error {
	l := f.lockFor(facultyID)
	l.Lock()
	defer l.Unlock()

	tx := &fakeTx{store: f}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (f *fakeAppointmentStore) WithAppointmentLock(ctx context.Context, id string, fn func(tx repository.AppointmentTx, current *models.Appointment) error) error {
	f.mu.Lock()
	apt, ok := f.appointments[id]
	f.mu.Unlock()
	if !ok {
		return sql.ErrNoRows
	}
	l := f.lockFor(apt.FacultyID)
	l.Lock()
	defer l.Unlock()

	current := *apt
	tx := &fakeTx{store: f}
	if err := fn(tx, &current); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (f *fakeAppointmentStore) notificationsFor(recipient string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.notifications {
		if n.RecipientID == recipient {
			out = append(out, n)
		}
	}
	return out
}

type fakeTx struct {
	store         *fakeAppointmentStore
	inserted      []models.Appointment
	updated       []models.Appointment
	notifications []models.Notification
}

func (t *fakeTx) ListActiveOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.Appointment, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var out []models.Appointment
	for _, apt := range t.store.appointments {
		if apt.FacultyID != facultyID || apt.Date.String() != date.String() {
			continue
		}
		if apt.Status == models.StatusPending || apt.Status == models.StatusApproved {
			out = append(out, *apt)
		}
	}
	return out, nil
}

func (t *fakeTx) ListSlotsOnDate(ctx context.Context, facultyID string, date models.Date) ([]models.AvailabilitySlot, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var out []models.AvailabilitySlot
	for _, slot := range t.store.slots {
		if slot.FacultyID == facultyID && slot.AppliesOn(date) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (t *fakeTx) Insert(ctx context.Context, apt *models.Appointment) error {
	t.store.mu.Lock()
	t.store.seq++
	apt.ID = fmt.Sprintf("apt-%d", t.store.seq)
	t.store.mu.Unlock()
	t.inserted = append(t.inserted, *apt)
	return nil
}

func (t *fakeTx) UpdateStatus(ctx context.Context, apt *models.Appointment) error {
	t.updated = append(t.updated, *apt)
	return nil
}

func (t *fakeTx) InsertNotification(ctx context.Context, n *models.Notification) error {
	t.notifications = append(t.notifications, *n)
	return nil
}

func (t *fakeTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := range t.inserted {
		apt := t.inserted[i]
		t.store.appointments[apt.ID] = &apt
	}
	for i := range t.updated {
		apt := t.updated[i]
		t.store.appointments[apt.ID] = &apt
		t.store.statusWrites++
	}
	t.store.notifications = append(t.store.notifications, t.notifications...)
}

type fakeUsers map[string]*models.User

func (f fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

var (
	student      = &models.User{ID: "stu-1", Name: "Sam", Role: models.RoleStudent}
	otherStudent = &models.User{ID: "stu-2", Name: "Kim", Role: models.RoleStudent}
	faculty      = &models.User{ID: "fac-1", Name: "Dr. Ada", Role: models.RoleFaculty}
	otherFaculty = &models.User{ID: "fac-2", Name: "Dr. Lin", Role: models.RoleFaculty}
	admin        = &models.User{ID: "adm-1", Name: "Root", Role: models.RoleAdmin}
)

func actorOf(u *models.User) models.Actor {
	return models.Actor{UserID: u.ID, Role: u.Role, Name: u.Name}
}

func mondaySlot() models.AvailabilitySlot {
	room := "Room 101"
	return models.AvailabilitySlot{ID: "slot-1", FacultyID: faculty.ID, DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00", IsRecurring: true, Kind: models.KindInPerson, Location: &room}
}

func newBookingFixture(cfg AppointmentConfig) (*AppointmentService, *fakeAppointmentStore, *recordingInvalidator, *MetricsService) {
	store := newFakeAppointmentStore(student, otherStudent, faculty, otherFaculty, admin)
	store.slots = []models.AvailabilitySlot{mondaySlot()}
	users := fakeUsers{student.ID: student, otherStudent.ID: otherStudent, faculty.ID: faculty, otherFaculty.ID: otherFaculty, admin.ID: admin}
	cache := &recordingInvalidator{}
	metrics := NewMetricsService()
	svc := NewAppointmentService(store, users, cache, metrics, nil, zap.NewNop(), cfg)
	return svc, store, cache, metrics
}

// 2026-10-19 is a Monday.
func bookingRequest(start, end string) BookAppointmentRequest {
	return BookAppointmentRequest{FacultyID: faculty.ID, Date: "2026-10-19", StartTime: start, EndTime: end, Reason: "thesis"}
}

func TestBookWithinAvailabilityCreatesPendingAndNotifies(t *testing.T) {
	svc, store, cache, metrics := newBookingFixture(AppointmentConfig{})

	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, apt.Status)
	assert.Equal(t, "09:15", apt.StartTime)
	assert.Equal(t, models.KindInPerson, apt.Kind)
	require.NotNil(t, apt.Location)
	assert.Equal(t, "Room 101", *apt.Location)

	notes := store.notificationsFor(faculty.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationRequest, notes[0].Type)
	assert.Equal(t, "Sam has requested an appointment on 2026-10-19 at 09:15", notes[0].Content)
	require.NotNil(t, notes[0].AppointmentID)
	assert.Equal(t, apt.ID, *notes[0].AppointmentID)

	assert.Equal(t, []string{statsCachePattern}, cache.patterns)
	assert.Equal(t, uint64(1), metrics.Snapshot().Bookings[BookingOutcomeCreated])
}

func TestBookRejectsOverlapWithExistingBooking(t *testing.T) {
	svc, store, _, metrics := newBookingFixture(AppointmentConfig{})

	_, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), actorOf(otherStudent), bookingRequest("09:30", "10:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAppointmentConflict))
	assert.Equal(t, "faculty already has an appointment at this time", appErrors.FromError(err).Message)

	assert.Len(t, store.appointments, 1)
	assert.Len(t, store.notificationsFor(faculty.ID), 1)
	assert.Equal(t, uint64(1), metrics.Snapshot().Bookings[BookingOutcomeConflict])
}

func TestBookOutsideAvailability(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})

	_, err := svc.Book(context.Background(), actorOf(student), bookingRequest("10:00", "10:30"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrOutsideAvailability))
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	tuesday := bookingRequest("09:15", "09:45")
	tuesday.Date = "2026-10-20"
	_, err = svc.Book(context.Background(), actorOf(student), tuesday)
	assert.True(t, errors.Is(err, appErrors.ErrOutsideAvailability))

	assert.Empty(t, store.appointments)
	assert.Empty(t, store.notifications)
}

func TestBookInclusiveBoundaryByDefault(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})
	_, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:00", "09:30"))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), actorOf(otherStudent), bookingRequest("09:30", "10:00"))
	assert.True(t, errors.Is(err, appErrors.ErrAppointmentConflict))
}

func TestBookBackToBackWhenAllowed(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{AllowBackToBack: true})
	_, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:00", "09:30"))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), actorOf(otherStudent), bookingRequest("09:30", "10:00"))
	require.NoError(t, err)
	assert.Len(t, store.appointments, 2)

	_, err = svc.Book(context.Background(), actorOf(otherStudent), bookingRequest("09:20", "09:40"))
	assert.True(t, errors.Is(err, appErrors.ErrAppointmentConflict))
}

func TestBookIgnoresInactiveAppointments(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), actorOf(student), apt.ID, UpdateStatusRequest{Status: models.StatusCanceled})
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), actorOf(otherStudent), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)
	assert.Len(t, store.appointments, 2)
}

func TestBookValidation(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})
	cases := map[string]BookAppointmentRequest{
		"missing reason":  {FacultyID: faculty.ID, Date: "2026-10-19", StartTime: "09:15", EndTime: "09:45"},
		"bad date":        {FacultyID: faculty.ID, Date: "19/10/2026", StartTime: "09:15", EndTime: "09:45", Reason: "x"},
		"bad time":        {FacultyID: faculty.ID, Date: "2026-10-19", StartTime: "9am", EndTime: "09:45", Reason: "x"},
		"inverted window": {FacultyID: faculty.ID, Date: "2026-10-19", StartTime: "09:45", EndTime: "09:15", Reason: "x"},
	}
	for name, req := range cases {
		_, err := svc.Book(context.Background(), actorOf(student), req)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), name)
	}
}

func TestBookRequiresStudentAndKnownFaculty(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})

	_, err := svc.Book(context.Background(), actorOf(faculty), bookingRequest("09:15", "09:45"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	req := bookingRequest("09:15", "09:45")
	req.FacultyID = "missing"
	_, err = svc.Book(context.Background(), actorOf(student), req)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	req.FacultyID = otherStudent.ID
	_, err = svc.Book(context.Background(), actorOf(student), req)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestConcurrentOverlappingBookingsAdmitOne(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := models.Actor{UserID: fmt.Sprintf("stu-%d", i+10), Role: models.RoleStudent, Name: "Student"}
			_, errs[i] = svc.Book(context.Background(), actor, bookingRequest("09:15", "09:45"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, appErrors.ErrAppointmentConflict))
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, store.appointments, 1)
}

func TestApproveNotifiesStudentOnce(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	detail, err := svc.UpdateStatus(context.Background(), actorOf(faculty), apt.ID, UpdateStatusRequest{Status: models.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, detail.Status)
	assert.Equal(t, "Dr. Ada", detail.Faculty.Name)

	notes := store.notificationsFor(student.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationApproved, notes[0].Type)
	assert.Contains(t, notes[0].Content, "approved")
}

func TestStudentCancelNotifiesFaculty(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), actorOf(student), apt.ID, UpdateStatusRequest{Status: models.StatusCanceled})
	require.NoError(t, err)

	facultyNotes := store.notificationsFor(faculty.ID)
	require.Len(t, facultyNotes, 2)
	assert.Equal(t, models.NotificationCanceled, facultyNotes[1].Type)
	assert.Empty(t, store.notificationsFor(student.ID))
}

func TestFacultyCancelNotifiesStudent(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), actorOf(faculty), apt.ID, UpdateStatusRequest{Status: models.StatusCanceled})
	require.NoError(t, err)

	notes := store.notificationsFor(student.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationCanceled, notes[0].Type)
}

func TestDoubleCancelIsInvalidTransition(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), actorOf(student), apt.ID, UpdateStatusRequest{Status: models.StatusCanceled})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), actorOf(student), apt.ID, UpdateStatusRequest{Status: models.StatusCanceled})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.Equal(t, models.StatusCanceled, store.appointments[apt.ID].Status)
	assert.Len(t, store.notificationsFor(faculty.ID), 2)
}

func TestCompleteWithMinutesIsSingleWrite(t *testing.T) {
	svc, store, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), actorOf(faculty), apt.ID, UpdateStatusRequest{Status: models.StatusApproved})
	require.NoError(t, err)
	writesBefore := store.statusWrites

	minutes := "Discussed chapter two"
	detail, err := svc.UpdateStatus(context.Background(), actorOf(faculty), apt.ID, UpdateStatusRequest{Status: models.StatusCompleted, Minutes: &minutes})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, detail.Status)
	require.NotNil(t, detail.Minutes)
	assert.Equal(t, minutes, *detail.Minutes)
	assert.Equal(t, writesBefore+1, store.statusWrites)

	assert.Len(t, store.notificationsFor(student.ID), 1, "completion does not notify")
}

func TestMinutesRequireCompletion(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})
	minutes := "notes"
	_, err := svc.UpdateStatus(context.Background(), actorOf(faculty), "any", UpdateStatusRequest{Status: models.StatusApproved, Minutes: &minutes})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUpdateStatusAuthority(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), actorOf(student), apt.ID, UpdateStatusRequest{Status: models.StatusApproved})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.UpdateStatus(context.Background(), actorOf(otherFaculty), apt.ID, UpdateStatusRequest{Status: models.StatusApproved})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.UpdateStatus(context.Background(), actorOf(otherStudent), apt.ID, UpdateStatusRequest{Status: models.StatusCanceled})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.UpdateStatus(context.Background(), actorOf(admin), apt.ID, UpdateStatusRequest{Status: models.StatusRejected})
	require.NoError(t, err)
}

func TestUpdateStatusUnknownAndMissing(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})

	_, err := svc.UpdateStatus(context.Background(), actorOf(faculty), "missing", UpdateStatusRequest{Status: "archived"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateStatus(context.Background(), actorOf(faculty), "missing", UpdateStatusRequest{Status: models.StatusApproved})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestListMineScopesByRole(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})
	_, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:00", "09:20"))
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), actorOf(otherStudent), bookingRequest("09:30", "09:50"))
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), actorOf(student), "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	forFaculty, err := svc.ListMine(context.Background(), actorOf(faculty), "")
	require.NoError(t, err)
	assert.Len(t, forFaculty, 2)

	none, err := svc.ListMine(context.Background(), actorOf(otherFaculty), "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	all, err := svc.ListMine(context.Background(), actorOf(admin), models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetRequiresParticipantOrAdmin(t *testing.T) {
	svc, _, _, _ := newBookingFixture(AppointmentConfig{})
	apt, err := svc.Book(context.Background(), actorOf(student), bookingRequest("09:15", "09:45"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), actorOf(student), apt.ID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), actorOf(admin), apt.ID)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), actorOf(otherStudent), apt.ID)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	_, err = svc.Get(context.Background(), actorOf(student), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
