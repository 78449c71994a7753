package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinic-booking-server/internal/metrics"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
)

var tracer = otel.Tracer("clinic-booking-server/internal/services")

// Notifier receives the event of every successful booking or transition.
type Notifier interface {
	Dispatch(ctx context.Context, evt scheduling.Event)
}

// Options tunes a BookingService. Zero values fall back to defaults.
type Options struct {
	CancellationWindow time.Duration
	DefaultSlotMinutes int
	Now                func() time.Time
}

// BookingService is the entry point for booking requests and lifecycle
// actions. It resolves the read-only schedule snapshots, runs the pure
// scheduling engine and persists the result.
type BookingService struct {
	store       repository.AppointmentStore
	directory   repository.Directory
	notifier    Notifier
	lifecycle   *scheduling.Lifecycle
	metrics     *metrics.BookingMetrics
	logger      zerolog.Logger
	defaultSlot int
	now         func() time.Time
}

func NewBookingService(store repository.AppointmentStore, directory repository.Directory, notifier Notifier, m *metrics.BookingMetrics, logger zerolog.Logger, opts Options) *BookingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultSlotMinutes <= 0 {
		opts.DefaultSlotMinutes = scheduling.DefaultSlotDuration
	}
	return &BookingService{
		store:       store,
		directory:   directory,
		notifier:    notifier,
		lifecycle:   scheduling.NewLifecycle(opts.CancellationWindow),
		metrics:     m,
		logger:      logger.With().Str("component", "booking").Logger(),
		defaultSlot: opts.DefaultSlotMinutes,
		now:         opts.Now,
	}
}

// AvailabilityQuery asks for the free slots of one doctor at one clinic on one date.
type AvailabilityQuery struct {
	DoctorID string
	ClinicID string
	Date     time.Time
	Duration int
}

// BookingRequest is a request to create an appointment.
type BookingRequest struct {
	PatientID   string
	DoctorID    string
	ClinicID    string
	Date        time.Time
	StartTime   string
	EndTime     string
	Type        string
	Reason      string
	Notes       string
	IsEmergency bool
}

// LifecycleAction is one action on an existing appointment. Only the payload
// matching Action is read.
type LifecycleAction struct {
	AppointmentID string
	Action        scheduling.Action
	Actor         scheduling.Actor
	Cancel        scheduling.CancelRequest
	Reschedule    scheduling.RescheduleRequest
	Complete      scheduling.CompleteRequest
	NoShow        scheduling.NoShowRequest
	Note          scheduling.NoteRequest
}

// Availability computes the free slots for a doctor on a date.
func (s *BookingService) Availability(ctx context.Context, q AvailabilityQuery) (scheduling.Availability, error) {
	ctx, span := tracer.Start(ctx, "booking.availability", trace.WithAttributes(
		attribute.String("clinic.doctor_id", q.DoctorID),
		attribute.String("clinic.clinic_id", q.ClinicID),
	))
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveAvailability(time.Since(start).Seconds()) }()

	if q.Date.IsZero() {
		return scheduling.Availability{}, recordSpanError(span, scheduling.Errorf(scheduling.ErrInvalidRequest, "date is required"))
	}
	if _, err := s.lookupUser(ctx, q.DoctorID, models.RoleDoctor, scheduling.ErrDoctorNotFound); err != nil {
		return scheduling.Availability{}, recordSpanError(span, err)
	}
	if _, err := s.lookupClinic(ctx, q.ClinicID); err != nil {
		return scheduling.Availability{}, recordSpanError(span, err)
	}
	clinicDay, doctorDay, err := s.resolveDay(ctx, q.DoctorID, q.ClinicID, q.Date)
	if err != nil {
		return scheduling.Availability{}, recordSpanError(span, err)
	}
	if doctorDay.SlotDuration == 0 {
		doctorDay.SlotDuration = s.defaultSlot
	}

	sameDay, err := s.store.ListByDoctorOnDate(ctx, q.DoctorID, q.Date)
	if err != nil {
		return scheduling.Availability{}, recordSpanError(span, err)
	}
	booked, err := scheduling.BookedRanges(sameDay)
	if err != nil {
		return scheduling.Availability{}, recordSpanError(span, err)
	}

	result, err := scheduling.ComputeAvailability(scheduling.AvailabilityInput{
		Doctor:   doctorDay,
		Clinic:   clinicDay,
		Booked:   booked,
		Duration: q.Duration,
	})
	if err != nil {
		return scheduling.Availability{}, recordSpanError(span, err)
	}
	span.SetAttributes(attribute.Int("clinic.slots", len(result.Slots)))
	return result, nil
}

// Book validates and creates an appointment. The store repeats the conflict
// check atomically; the check here only rejects early.
func (s *BookingService) Book(ctx context.Context, actor scheduling.Actor, req BookingRequest) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID),
		attribute.String("clinic.clinic_id", req.ClinicID),
		attribute.Bool("clinic.emergency", req.IsEmergency),
	))
	defer span.End()

	a, err := s.book(ctx, actor, req)
	s.metrics.ObserveBooking(errorCode(err))
	if err != nil {
		s.logger.Info().Err(err).Str("doctor_id", req.DoctorID).Str("actor", actor.ID).Msg("booking rejected")
		return nil, recordSpanError(span, err)
	}
	span.SetAttributes(attribute.String("clinic.appointment_id", a.ID))
	s.logger.Info().Str("appointment_id", a.ID).Str("doctor_id", a.DoctorID).Str("status", string(a.Status)).Msg("appointment booked")
	s.notify(ctx, scheduling.CreatedEvent(a, actor.ID, s.now()))
	return a, nil
}

func (s *BookingService) book(ctx context.Context, actor scheduling.Actor, req BookingRequest) (*models.Appointment, error) {
	if req.Date.IsZero() {
		return nil, scheduling.Errorf(scheduling.ErrInvalidRequest, "date is required")
	}
	r, err := scheduling.ParseRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := scheduling.CheckDuration(r.Duration()); err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RolePatient:
		if req.PatientID != actor.ID {
			return nil, scheduling.Errorf(scheduling.ErrAccessDenied, "patients can only book appointments for themselves")
		}
	case models.RoleDoctor:
		if req.DoctorID != actor.ID {
			return nil, scheduling.Errorf(scheduling.ErrAccessDenied, "doctors can only book into their own schedule")
		}
	}

	if _, err := s.lookupUser(ctx, req.PatientID, models.RolePatient, scheduling.ErrPatientNotFound); err != nil {
		return nil, err
	}
	if _, err := s.lookupUser(ctx, req.DoctorID, models.RoleDoctor, scheduling.ErrDoctorNotFound); err != nil {
		return nil, err
	}
	clinic, err := s.lookupClinic(ctx, req.ClinicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkNotPast(req.Date, scheduling.ToHHMM(r.Start), clinic.Timezone, req.IsEmergency, now); err != nil {
		return nil, err
	}
	if err := s.checkBookable(ctx, req.DoctorID, req.ClinicID, req.Date, r); err != nil {
		return nil, err
	}

	sameDay, err := s.store.ListByDoctorOnDate(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, err
	}
	existing, err := scheduling.FindConflict(sameDay, scheduling.Candidate{DoctorID: req.DoctorID, Date: req.Date, Range: r})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, scheduling.ConflictError(existing)
	}

	a, err := scheduling.NewAppointment(scheduling.BookingDraft{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		ClinicID:    req.ClinicID,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Timezone:    clinic.Timezone,
		Type:        req.Type,
		Reason:      req.Reason,
		Notes:       req.Notes,
		IsEmergency: req.IsEmergency,
		CreatedBy:   actor.ID,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Act applies one lifecycle action. The action runs on a copy; a rejected
// action or a failed write leaves the stored appointment as it was.
func (s *BookingService) Act(ctx context.Context, act LifecycleAction) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.act", trace.WithAttributes(
		attribute.String("clinic.appointment_id", act.AppointmentID),
		attribute.String("clinic.action", string(act.Action)),
	))
	defer span.End()

	a, evt, err := s.act(ctx, act)
	s.metrics.ObserveTransition(string(act.Action), errorCode(err))
	if err != nil {
		s.logger.Info().Err(err).
			Str("appointment_id", act.AppointmentID).
			Str("action", string(act.Action)).
			Str("actor", act.Actor.ID).
			Msg("action rejected")
		return nil, recordSpanError(span, err)
	}
	s.logger.Info().
		Str("appointment_id", a.ID).
		Str("action", string(act.Action)).
		Str("status", string(a.Status)).
		Int("version", a.Version).
		Msg("appointment updated")
	s.notify(ctx, evt)
	return a, nil
}

func (s *BookingService) act(ctx context.Context, act LifecycleAction) (*models.Appointment, scheduling.Event, error) {
	stored, err := s.getAppointment(ctx, act.AppointmentID)
	if err != nil {
		return nil, scheduling.Event{}, err
	}
	if err := authorizeAction(act.Actor, stored, act.Action); err != nil {
		return nil, scheduling.Event{}, err
	}

	work := stored.Clone()
	now := s.now()
	var evt scheduling.Event
	switch act.Action {
	case scheduling.ActionConfirm:
		evt, err = s.lifecycle.Confirm(work, act.Actor, now)
	case scheduling.ActionCancel:
		evt, err = s.lifecycle.Cancel(work, act.Actor, act.Cancel, now)
	case scheduling.ActionReschedule:
		evt, err = s.reschedule(ctx, work, act, now)
	case scheduling.ActionCheckIn:
		evt, err = s.lifecycle.CheckIn(work, act.Actor, now)
	case scheduling.ActionStart:
		evt, err = s.lifecycle.Start(work, act.Actor, now)
	case scheduling.ActionComplete:
		evt, err = s.lifecycle.Complete(work, act.Actor, act.Complete, now)
	case scheduling.ActionNoShow:
		evt, err = s.lifecycle.NoShow(work, act.Actor, act.NoShow, now)
	case scheduling.ActionNote:
		evt, err = s.lifecycle.AddNote(work, act.Actor, act.Note, now)
	default:
		err = scheduling.Errorf(scheduling.ErrInvalidRequest, "unknown action %q", act.Action)
	}
	if err != nil {
		return nil, scheduling.Event{}, err
	}

	if err := s.store.Update(ctx, work, stored.Version, act.Action == scheduling.ActionReschedule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, scheduling.Event{}, scheduling.Errorf(scheduling.ErrAppointmentNotFound, "appointment %s not found", act.AppointmentID)
		}
		return nil, scheduling.Event{}, err
	}
	return work, evt, nil
}

func (s *BookingService) reschedule(ctx context.Context, work *models.Appointment, act LifecycleAction, now time.Time) (scheduling.Event, error) {
	req := act.Reschedule
	sameDay, err := s.store.ListByDoctorOnDate(ctx, work.DoctorID, req.Date)
	if err != nil {
		return scheduling.Event{}, err
	}
	evt, err := s.lifecycle.Reschedule(work, act.Actor, req, sameDay, now)
	if err != nil {
		return scheduling.Event{}, err
	}
	r, err := scheduling.ParseRange(work.StartTime, work.EndTime)
	if err != nil {
		return scheduling.Event{}, err
	}
	if err := s.checkBookable(ctx, work.DoctorID, work.ClinicID, work.Date, r); err != nil {
		return scheduling.Event{}, err
	}
	return evt, nil
}

// Get returns one appointment if the actor may see it.
func (s *BookingService) Get(ctx context.Context, actor scheduling.Actor, id string) (*models.Appointment, error) {
	a, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, a) {
		return nil, scheduling.Errorf(scheduling.ErrAccessDenied, "you are not authorized to view this appointment")
	}
	return a, nil
}

// List returns the actor's appointments. Patients and doctors only ever see
// their own; staff may filter freely.
func (s *BookingService) List(ctx context.Context, actor scheduling.Actor, filter repository.ListFilter) ([]models.Appointment, error) {
	switch {
	case actor.Role.IsStaff():
	case actor.Role == models.RoleDoctor:
		filter.DoctorID = actor.ID
	case actor.Role == models.RolePatient:
		filter.PatientID = actor.ID
	default:
		return nil, scheduling.Errorf(scheduling.ErrAccessDenied, "role %q may not list appointments", actor.Role)
	}
	return s.store.ListForUser(ctx, filter)
}

func (s *BookingService) checkNotPast(date time.Time, start, tz string, emergency bool, now time.Time) error {
	loc, err := scheduling.Location(tz)
	if err != nil {
		return err
	}
	today := scheduling.DateOnly(now.In(loc))
	if scheduling.DateOnly(date).Before(today) {
		return scheduling.Errorf(scheduling.ErrPastDate, "date %s is in the past", date.Format(time.DateOnly))
	}
	if emergency {
		return nil
	}
	startsAt, err := scheduling.At(date, start, tz)
	if err != nil {
		return err
	}
	if !startsAt.After(now) {
		return scheduling.Errorf(scheduling.ErrPastDate, "start time %s %s has already passed", date.Format(time.DateOnly), start)
	}
	return nil
}

// checkBookable verifies the range against clinic hours and the doctor's day.
func (s *BookingService) checkBookable(ctx context.Context, doctorID, clinicID string, date time.Time, r scheduling.TimeRange) error {
	clinicDay, doctorDay, err := s.resolveDay(ctx, doctorID, clinicID, date)
	if err != nil {
		return err
	}
	if !clinicDay.Open {
		return scheduling.Errorf(scheduling.ErrClinicClosed, "clinic is closed on %s", date.Format(time.DateOnly)).
			With("weekday", date.Weekday().String())
	}
	ok, err := clinicDay.Accepts(r)
	if err != nil {
		return err
	}
	if !ok {
		return scheduling.Errorf(scheduling.ErrOutsideOperatingHours, "%s is outside clinic hours %s-%s", r, clinicDay.OpenTime, clinicDay.CloseTime).
			With("clinicHours", clinicDay)
	}
	ok, err = doctorDay.Accepts(r)
	if err != nil {
		return err
	}
	if !ok {
		return scheduling.Errorf(scheduling.ErrDoctorUnavailable, "doctor is not available %s on %s", r, date.Format(time.DateOnly)).
			With("doctorSchedule", doctorDay)
	}
	return nil
}

func (s *BookingService) resolveDay(ctx context.Context, doctorID, clinicID string, date time.Time) (scheduling.ClinicDay, scheduling.DaySchedule, error) {
	hours, err := s.directory.GetClinicHours(ctx, clinicID)
	if err != nil {
		return scheduling.ClinicDay{}, scheduling.DaySchedule{}, err
	}
	weekly, exceptions, err := s.directory.GetDoctorSchedule(ctx, doctorID, date)
	if err != nil {
		return scheduling.ClinicDay{}, scheduling.DaySchedule{}, err
	}
	return scheduling.ResolveClinicDay(hours, date), scheduling.ResolveDaySchedule(weekly, exceptions, date), nil
}

func (s *BookingService) lookupUser(ctx context.Context, id string, role models.Role, notFound *scheduling.Error) (*models.User, error) {
	if id == "" {
		return nil, scheduling.Errorf(notFound, "%s id is required", role)
	}
	u, err := s.directory.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && u.Role != role) {
		return nil, scheduling.Errorf(notFound, "%s %s not found", role, id)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *BookingService) lookupClinic(ctx context.Context, id string) (*models.Clinic, error) {
	c, err := s.directory.GetClinic(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, scheduling.Errorf(scheduling.ErrClinicNotFound, "clinic %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BookingService) getAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, scheduling.Errorf(scheduling.ErrAppointmentNotFound, "appointment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment: %w", err)
	}
	return a, nil
}

func (s *BookingService) notify(ctx context.Context, evt scheduling.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, evt)
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := scheduling.AsError(err); ok {
		return string(se.Code)
	}
	return "internal"
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
