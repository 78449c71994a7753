package repository

import (
	"context"
	"errors"
	"time"

	"clinic-booking-server/internal/models"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// ListFilter narrows an appointment listing. Zero values mean "any".
type ListFilter struct {
	PatientID string
	DoctorID  string
	ClinicID  string
	Status    models.AppointmentStatus
	From      time.Time // inclusive calendar date
	To        time.Time // inclusive calendar date
	Limit     int
	Offset    int
}

// AppointmentStore persists appointments.
//
// Create and Update(checkConflict=true) run the conflict check and the write
// as one critical section per doctor, so two overlapping bookings can never
// both succeed. Update is optimistic: it fails with ConcurrentModification
// when the stored version is no longer prevVersion.
type AppointmentStore interface {
	Create(ctx context.Context, a *models.Appointment) error
	Update(ctx context.Context, a *models.Appointment, prevVersion int, checkConflict bool) error
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	ListByDoctorOnDate(ctx context.Context, doctorID string, date time.Time) ([]models.Appointment, error)
	ListForUser(ctx context.Context, filter ListFilter) ([]models.Appointment, error)
}

// Directory serves the read-mostly reference data: users, clinics and
// doctor schedules.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListDoctors(ctx context.Context, specialty string) ([]models.User, error)
	GetClinic(ctx context.Context, id string) (*models.Clinic, error)
	GetClinicHours(ctx context.Context, clinicID string) ([]models.ClinicHours, error)
	UpsertClinicHours(ctx context.Context, clinicID string, hours []models.ClinicHours) error
	// GetDoctorSchedule returns the weekly template and the exceptions that
	// fall on date.
	GetDoctorSchedule(ctx context.Context, doctorID string, date time.Time) ([]models.DoctorSchedule, []models.DoctorScheduleException, error)
	UpsertDoctorSchedule(ctx context.Context, doctorID string, days []models.DoctorSchedule) error
	AddScheduleException(ctx context.Context, ex *models.DoctorScheduleException) error
}
