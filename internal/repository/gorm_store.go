package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
)

// GormAppointmentStore is the SQL-backed AppointmentStore.
type GormAppointmentStore struct {
	db *gorm.DB
}

// NewGormAppointmentStore wraps an open gorm connection.
func NewGormAppointmentStore(db *gorm.DB) *GormAppointmentStore {
	return &GormAppointmentStore{db: db}
}

// Create inserts a new appointment and its initial log entries. The doctor's
// user row is locked for the duration of the transaction so concurrent
// bookings for the same doctor serialize on the conflict check.
func (s *GormAppointmentStore) Create(ctx context.Context, a *models.Appointment) error {
	if err := scheduling.Validate(a); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDoctor(tx, a.DoctorID); err != nil {
			return err
		}
		if err := checkConflict(tx, a); err != nil {
			return err
		}
		if err := tx.Omit("Logs").Create(a).Error; err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return insertNewLogs(tx, a)
	})
}

// Update writes a changed appointment if nobody else changed it since
// prevVersion was read. New log entries (those without an ID) are appended.
func (s *GormAppointmentStore) Update(ctx context.Context, a *models.Appointment, prevVersion int, checkConflictFirst bool) error {
	if err := scheduling.Validate(a); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if checkConflictFirst {
			if err := lockDoctor(tx, a.DoctorID); err != nil {
				return err
			}
			if err := checkConflict(tx, a); err != nil {
				return err
			}
		}

		res := tx.Model(a).
			Where("version = ?", prevVersion).
			Select("*").
			Omit("Logs", "CreatedAt").
			Updates(a)
		if res.Error != nil {
			return fmt.Errorf("failed to update appointment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Appointment{}).Where("id = ?", a.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check appointment: %w", err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return scheduling.Errorf(scheduling.ErrConcurrentModification,
				"appointment %s was modified by someone else", a.ID).With("expectedVersion", prevVersion)
		}
		return insertNewLogs(tx, a)
	})
}

// GetByID loads an appointment with its communication log.
func (s *GormAppointmentStore) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC") }).
		Where("id = ?", id).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &a, nil
}

// ListByDoctorOnDate returns every appointment of the doctor on date's
// calendar day, whatever its status, ordered by start time.
func (s *GormAppointmentStore) ListByDoctorOnDate(ctx context.Context, doctorID string, date time.Time) ([]models.Appointment, error) {
	from, to := scheduling.DayBounds(date)
	var out []models.Appointment
	err := s.db.WithContext(ctx).
		Where("doctor_id = ? AND date >= ? AND date < ?", doctorID, from, to).
		Order("start_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return out, nil
}

// ListForUser lists appointments matching the filter, soonest first.
func (s *GormAppointmentStore) ListForUser(ctx context.Context, f ListFilter) ([]models.Appointment, error) {
	q := s.db.WithContext(ctx).Model(&models.Appointment{})
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.ClinicID != "" {
		q = q.Where("clinic_id = ?", f.ClinicID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("date >= ?", scheduling.DateOnly(f.From))
	}
	if !f.To.IsZero() {
		_, end := scheduling.DayBounds(f.To)
		q = q.Where("date < ?", end)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.Appointment
	if err := q.Order("date ASC").Order("start_time ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return out, nil
}

func lockDoctor(tx *gorm.DB, doctorID string) error {
	var doctor models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ? AND role = ?", doctorID, models.RoleDoctor).
		Take(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return scheduling.Errorf(scheduling.ErrDoctorNotFound, "doctor %s not found", doctorID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock doctor: %w", err)
	}
	return nil
}

// checkConflict tests a's slot against the doctor's other active appointments.
// a's own status does not matter: a rescheduled appointment still needs a free slot.
func checkConflict(tx *gorm.DB, a *models.Appointment) error {
	from, to := scheduling.DayBounds(a.Date)
	var sameDay []models.Appointment
	err := tx.Where("doctor_id = ? AND date >= ? AND date < ? AND status IN ?",
		a.DoctorID, from, to, scheduling.ActiveStatuses()).
		Find(&sameDay).Error
	if err != nil {
		return fmt.Errorf("failed to load doctor's day: %w", err)
	}
	r, err := scheduling.ParseRange(a.StartTime, a.EndTime)
	if err != nil {
		return err
	}
	existing, err := scheduling.FindConflict(sameDay, scheduling.Candidate{
		DoctorID: a.DoctorID, Date: a.Date, Range: r, ExcludeID: a.ID,
	})
	if err != nil {
		return err
	}
	if existing != nil {
		return scheduling.ConflictError(existing)
	}
	return nil
}

func insertNewLogs(tx *gorm.DB, a *models.Appointment) error {
	for i := range a.Logs {
		if a.Logs[i].ID != "" {
			continue
		}
		a.Logs[i].AppointmentID = a.ID
		if err := tx.Create(&a.Logs[i]).Error; err != nil {
			return fmt.Errorf("failed to append appointment log: %w", err)
		}
	}
	return nil
}
