package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/notify"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
)

var (
	saturday  = time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	sunday    = time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	tuesday   = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store    *repository.MemoryStore
	svc      *BookingService
	dir      *DirectoryService
	notifier *MockNotifier
	clock    *fakeClock

	clinic  models.Clinic
	doctor  models.User
	patient models.User
	other   models.User
	staff   scheduling.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	f := &fixture{
		store:    store,
		notifier: &MockNotifier{},
		clock:    &fakeClock{t: saturday.Add(8 * time.Hour)},
		clinic:   store.PutClinic(models.Clinic{Name: "Main Street", Timezone: "UTC"}),
		doctor:   store.PutUser(models.User{Email: "grey@example.com", LastName: "Grey", Role: models.RoleDoctor}),
		patient:  store.PutUser(models.User{Email: "ann@example.com", Role: models.RolePatient}),
		other:    store.PutUser(models.User{Email: "bob@example.com", Role: models.RolePatient}),
	}
	staff := store.PutUser(models.User{Email: "desk@example.com", Role: models.RoleStaff})
	f.staff = scheduling.Actor{ID: staff.ID, Role: models.RoleStaff}

	f.dir = NewDirectoryService(store)
	require.NoError(t, f.dir.SetClinicHours(ctx, f.clinic.ID, []models.ClinicHours{
		{Weekday: 2, IsOpen: true, OpenTime: "08:00", CloseTime: "17:00"},
		{Weekday: 3, IsOpen: true, OpenTime: "08:00", CloseTime: "17:00"},
	}))
	require.NoError(t, f.dir.SetDoctorSchedule(ctx, f.doctor.ID, []models.DoctorSchedule{
		{Weekday: 0, IsWorking: true, StartTime: "09:00", EndTime: "12:00", SlotDuration: 30},
		{Weekday: 2, IsWorking: true, StartTime: "09:00", EndTime: "17:00", BreakStart: "12:00", BreakEnd: "13:00", SlotDuration: 30},
		{Weekday: 3, IsWorking: true, StartTime: "09:00", EndTime: "17:00", SlotDuration: 30},
	}))

	f.svc = NewBookingService(store, store, f.notifier, nil, zerolog.Nop(), Options{Now: f.clock.Now})
	return f
}

func (f *fixture) request(date time.Time, start, end string) BookingRequest {
	return BookingRequest{
		PatientID: f.patient.ID, DoctorID: f.doctor.ID, ClinicID: f.clinic.ID,
		Date: date, StartTime: start, EndTime: end, Type: "consultation", Reason: "checkup",
	}
}

func (f *fixture) patientActor() scheduling.Actor {
	return scheduling.Actor{ID: f.patient.ID, Role: models.RolePatient}
}

func (f *fixture) book(t *testing.T, date time.Time, start, end string) *models.Appointment {
	t.Helper()
	a, err := f.svc.Book(context.Background(), f.staff, f.request(date, start, end))
	require.NoError(t, err)
	return a
}

func TestBook_Success(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, tuesday, "10:00", "10:30")

	assert.Equal(t, models.StatusScheduled, a.Status)
	assert.Equal(t, models.RiskLow, a.CancellationRisk)
	assert.Equal(t, "UTC", a.Timezone)
	assert.Equal(t, f.staff.ID, a.CreatedBy)

	stored, err := f.store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, scheduling.ActionCreate, events[0].Action)
	assert.Equal(t, a.ID, events[0].AppointmentID)
}

func TestBook_Rejections(t *testing.T) {
	f := newFixture(t)
	existing := f.book(t, tuesday, "10:00", "10:30")
	ctx := context.Background()

	cases := []struct {
		name  string
		actor scheduling.Actor
		mut   func(*BookingRequest)
		want  *scheduling.Error
	}{
		{"overlap", f.staff, func(r *BookingRequest) { r.StartTime, r.EndTime = "10:15", "10:45" }, scheduling.ErrSchedulingConflict},
		{"bad format", f.staff, func(r *BookingRequest) { r.StartTime = "9am" }, scheduling.ErrInvalidFormat},
		{"reversed", f.staff, func(r *BookingRequest) { r.StartTime, r.EndTime = "11:00", "10:00" }, scheduling.ErrInvalidRange},
		{"too short", f.staff, func(r *BookingRequest) { r.StartTime, r.EndTime = "11:00", "11:10" }, scheduling.ErrInvalidDuration},
		{"clinic closed", f.staff, func(r *BookingRequest) { r.Date = sunday }, scheduling.ErrClinicClosed},
		{"outside clinic hours", f.staff, func(r *BookingRequest) { r.StartTime, r.EndTime = "07:30", "08:00" }, scheduling.ErrOutsideOperatingHours},
		{"doctor on break", f.staff, func(r *BookingRequest) { r.StartTime, r.EndTime = "12:00", "12:30" }, scheduling.ErrDoctorUnavailable},
		{"past date", f.staff, func(r *BookingRequest) { r.Date = saturday.AddDate(0, 0, -1) }, scheduling.ErrPastDate},
		{"unknown patient", f.staff, func(r *BookingRequest) { r.PatientID = "ghost" }, scheduling.ErrPatientNotFound},
		{"doctor is not a doctor", f.staff, func(r *BookingRequest) { r.DoctorID = f.other.ID }, scheduling.ErrDoctorNotFound},
		{"unknown clinic", f.staff, func(r *BookingRequest) { r.ClinicID = "ghost" }, scheduling.ErrClinicNotFound},
		{"patient books for someone else", scheduling.Actor{ID: f.other.ID, Role: models.RolePatient}, func(r *BookingRequest) {}, scheduling.ErrAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(tuesday, "14:00", "14:30")
			tc.mut(&req)
			_, err := f.svc.Book(ctx, tc.actor, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.svc.Book(ctx, f.staff, f.request(tuesday, "10:15", "10:45"))
	se, ok := scheduling.AsError(err)
	require.True(t, ok)
	assert.Equal(t, existing.ID, se.Details["existingAppointmentId"])
	assert.Len(t, f.notifier.Events(), 1, "rejections emit no events")
}

func TestBook_DoctorException(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.dir.AddScheduleException(ctx, &models.DoctorScheduleException{
		DoctorID: f.doctor.ID, Date: tuesday, Kind: models.ExceptionUnavailable, Reason: "conference",
	}))
	_, err := f.svc.Book(ctx, f.staff, f.request(tuesday, "10:00", "10:30"))
	assert.ErrorIs(t, err, scheduling.ErrDoctorUnavailable)

	_, err = f.svc.Book(ctx, f.staff, f.request(wednesday, "10:00", "10:30"))
	assert.NoError(t, err)
}

func TestBook_EmergencyWalkIn(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(tuesday.Add(10*time.Hour + 20*time.Minute))
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.staff, f.request(tuesday, "10:00", "10:30"))
	assert.ErrorIs(t, err, scheduling.ErrPastDate)

	req := f.request(tuesday, "10:00", "10:30")
	req.IsEmergency = true
	a, err := f.svc.Book(ctx, f.staff, req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, a.Status)
	assert.Equal(t, models.RiskHigh, a.NoShowRisk)

	req.Date = saturday
	_, err = f.svc.Book(ctx, f.staff, req)
	assert.ErrorIs(t, err, scheduling.ErrPastDate, "emergencies cannot be booked on a past date")
}

func TestBook_NotifierFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	failing := &failingPublisher{}
	dispatcher := notify.NewDispatcher(zerolog.Nop(), nil, time.Second, failing)
	svc := NewBookingService(f.store, f.store, dispatcher, nil, zerolog.Nop(), Options{Now: f.clock.Now})

	a, err := svc.Book(context.Background(), f.staff, f.request(tuesday, "09:00", "09:30"))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 1, failing.calls)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Name() string { return "failing" }

func (p *failingPublisher) Publish(context.Context, scheduling.Event) error {
	p.calls++
	return errors.New("smtp relay down")
}

func TestAct_AccessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, tuesday, "10:00", "10:30")

	_, err := f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionConfirm, Actor: f.patientActor()})
	require.NoError(t, err)

	_, err = f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionNoShow, Actor: f.patientActor()})
	assert.ErrorIs(t, err, scheduling.ErrAccessDenied, "patients cannot mark no-show")

	_, err = f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionConfirm, Actor: scheduling.Actor{ID: f.other.ID, Role: models.RolePatient}})
	assert.ErrorIs(t, err, scheduling.ErrAccessDenied)

	_, err = f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionNote, Actor: scheduling.Actor{ID: "dr-other", Role: models.RoleDoctor}, Note: scheduling.NoteRequest{Text: "x"}})
	assert.ErrorIs(t, err, scheduling.ErrAccessDenied)

	doctor := scheduling.Actor{ID: f.doctor.ID, Role: models.RoleDoctor}
	updated, err := f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionNote, Actor: doctor, Note: scheduling.NoteRequest{Text: "fasting required"}})
	require.NoError(t, err)
	assert.Equal(t, "fasting required", updated.Notes)

	_, err = f.svc.Act(ctx, LifecycleAction{AppointmentID: "APT-nope", Action: scheduling.ActionConfirm, Actor: f.staff})
	assert.ErrorIs(t, err, scheduling.ErrAppointmentNotFound)
}

func TestAct_CancelWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, tuesday, "10:00", "10:30")

	f.clock.Set(tuesday.Add(-10 * time.Hour))
	_, err := f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionCancel, Actor: f.staff})
	require.ErrorIs(t, err, scheduling.ErrInvalidTransition)

	stored, _ := f.store.GetByID(ctx, a.ID)
	assert.Equal(t, models.StatusScheduled, stored.Status)
	assert.Equal(t, 0, stored.Version)

	f.clock.Set(tuesday.Add(-15 * time.Hour))
	cancelled, err := f.svc.Act(ctx, LifecycleAction{
		AppointmentID: a.ID, Action: scheduling.ActionCancel, Actor: f.patientActor(),
		Cancel: scheduling.CancelRequest{Reason: "feeling better", RefundAmount: decimal.RequireFromString("25.50")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, models.RefundPending, cancelled.Cancellation.RefundStatus)
	assert.Equal(t, f.patient.ID, cancelled.Cancellation.CancelledBy)

	stored, _ = f.store.GetByID(ctx, a.ID)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.Equal(t, 1, stored.Version)
}

func TestAct_Reschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, tuesday, "10:00", "10:30")
	blocker := f.book(t, wednesday, "14:00", "14:30")

	move := func(start, end string) (*models.Appointment, error) {
		return f.svc.Act(ctx, LifecycleAction{
			AppointmentID: a.ID, Action: scheduling.ActionReschedule, Actor: f.staff,
			Reschedule: scheduling.RescheduleRequest{Date: wednesday, StartTime: start, EndTime: end, Reason: "doctor request"},
		})
	}

	_, err := move("14:15", "14:45")
	require.ErrorIs(t, err, scheduling.ErrSchedulingConflict)
	se, _ := scheduling.AsError(err)
	assert.Equal(t, blocker.ID, se.Details["existingAppointmentId"])

	_, err = move("17:00", "17:30")
	assert.ErrorIs(t, err, scheduling.ErrOutsideOperatingHours)

	stored, _ := f.store.GetByID(ctx, a.ID)
	assert.Equal(t, "10:00", stored.StartTime)
	assert.Equal(t, tuesday, stored.Date)

	moved, err := move("15:00", "15:30")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRescheduled, moved.Status)
	assert.Equal(t, "10:00", moved.Reschedule.PreviousStartTime)

	avail, err := f.svc.Availability(ctx, AvailabilityQuery{DoctorID: f.doctor.ID, ClinicID: f.clinic.ID, Date: tuesday})
	require.NoError(t, err)
	assert.Contains(t, avail.Slots, scheduling.Slot{Start: "10:00", End: "10:30", Duration: 30}, "the old slot is free again")
}

// A rescheduled appointment is no longer active: it stops holding its new
// slot and accepts nothing but notes.
func TestAct_RescheduledAppointmentIsInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, tuesday, "10:00", "10:30")

	moved, err := f.svc.Act(ctx, LifecycleAction{
		AppointmentID: a.ID, Action: scheduling.ActionReschedule, Actor: f.staff,
		Reschedule: scheduling.RescheduleRequest{Date: wednesday, StartTime: "15:00", EndTime: "15:30"},
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusRescheduled, moved.Status)

	other := f.book(t, wednesday, "15:00", "15:30")
	assert.NotEqual(t, moved.ID, other.ID)

	for _, action := range []scheduling.Action{scheduling.ActionConfirm, scheduling.ActionCancel, scheduling.ActionCheckIn} {
		_, err := f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: action, Actor: f.staff})
		assert.ErrorIs(t, err, scheduling.ErrInvalidTransition, action)
	}

	noted, err := f.svc.Act(ctx, LifecycleAction{
		AppointmentID: a.ID, Action: scheduling.ActionNote, Actor: f.staff,
		Note: scheduling.NoteRequest{Text: "patient asked to keep the old slot"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRescheduled, noted.Status)
}

func TestAct_VisitFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.request(tuesday, "10:00", "10:30")
	req.IsEmergency = true
	a, err := f.svc.Book(ctx, f.staff, req)
	require.NoError(t, err)

	step := func(action scheduling.Action, at time.Time) *models.Appointment {
		t.Helper()
		f.clock.Set(at)
		out, err := f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: action, Actor: f.staff})
		require.NoError(t, err, action)
		return out
	}

	_, err = f.svc.Act(ctx, LifecycleAction{AppointmentID: a.ID, Action: scheduling.ActionCheckIn, Actor: f.staff})
	assert.ErrorIs(t, err, scheduling.ErrInvalidTransition, "check-in only on the appointment day")

	step(scheduling.ActionCheckIn, tuesday.Add(9*time.Hour+50*time.Minute))
	started := step(scheduling.ActionStart, tuesday.Add(10*time.Hour+5*time.Minute))
	assert.Equal(t, 15, *started.CheckIn.WaitingTime)
	done := step(scheduling.ActionComplete, tuesday.Add(10*time.Hour+40*time.Minute))
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, 35, *done.CheckIn.TotalTime)
	assert.Equal(t, 3, done.Version)

	actions := []scheduling.Action{}
	for _, e := range f.notifier.Events() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []scheduling.Action{scheduling.ActionCreate, scheduling.ActionCheckIn, scheduling.ActionStart, scheduling.ActionComplete}, actions)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, tuesday, "10:00", "10:30")

	avail, err := f.svc.Availability(ctx, AvailabilityQuery{DoctorID: f.doctor.ID, ClinicID: f.clinic.ID, Date: tuesday})
	require.NoError(t, err)
	assert.Len(t, avail.Slots, 13)
	assert.NotContains(t, avail.Slots, scheduling.Slot{Start: "10:00", End: "10:30", Duration: 30})
	assert.NotContains(t, avail.Slots, scheduling.Slot{Start: "12:00", End: "12:30", Duration: 30})

	avail, err = f.svc.Availability(ctx, AvailabilityQuery{DoctorID: f.doctor.ID, ClinicID: f.clinic.ID, Date: sunday})
	require.NoError(t, err)
	assert.Empty(t, avail.Slots)
	assert.Equal(t, scheduling.ReasonClinicClosed, avail.Reason)

	_, err = f.svc.Availability(ctx, AvailabilityQuery{DoctorID: f.patient.ID, ClinicID: f.clinic.ID, Date: tuesday})
	assert.ErrorIs(t, err, scheduling.ErrDoctorNotFound)

	_, err = f.svc.Availability(ctx, AvailabilityQuery{DoctorID: f.doctor.ID, ClinicID: f.clinic.ID, Date: tuesday, Duration: 5})
	assert.ErrorIs(t, err, scheduling.ErrInvalidDuration)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.book(t, tuesday, "10:00", "10:30")
	req := f.request(tuesday, "11:00", "11:30")
	req.PatientID = f.other.ID
	theirs, err := f.svc.Book(ctx, f.staff, req)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.patientActor(), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.Get(ctx, f.patientActor(), theirs.ID)
	assert.ErrorIs(t, err, scheduling.ErrAccessDenied)

	list, err := f.svc.List(ctx, f.patientActor(), repository.ListFilter{PatientID: f.other.ID})
	require.NoError(t, err)
	require.Len(t, list, 1, "a patient's filter is pinned to themselves")
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = f.svc.List(ctx, scheduling.Actor{ID: f.doctor.ID, Role: models.RoleDoctor}, repository.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.List(ctx, f.staff, repository.ListFilter{PatientID: f.other.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
