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

// GormDirectory is the SQL-backed Directory.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory wraps an open gorm connection.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (d *GormDirectory) ListDoctors(ctx context.Context, specialty string) ([]models.User, error) {
	q := d.db.WithContext(ctx).Where("role = ?", models.RoleDoctor)
	if specialty != "" {
		q = q.Where("specialty = ?", specialty)
	}
	var doctors []models.User
	if err := q.Order("last_name ASC").Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (d *GormDirectory) GetClinic(ctx context.Context, id string) (*models.Clinic, error) {
	var c models.Clinic
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, notFound(err, "clinic")
	}
	return &c, nil
}

func (d *GormDirectory) GetClinicHours(ctx context.Context, clinicID string) ([]models.ClinicHours, error) {
	var hours []models.ClinicHours
	if err := d.db.WithContext(ctx).Where("clinic_id = ?", clinicID).Order("weekday ASC").Find(&hours).Error; err != nil {
		return nil, fmt.Errorf("failed to load clinic hours: %w", err)
	}
	return hours, nil
}

// UpsertClinicHours replaces the rows for the given weekdays.
func (d *GormDirectory) UpsertClinicHours(ctx context.Context, clinicID string, hours []models.ClinicHours) error {
	for i := range hours {
		hours[i].ClinicID = clinicID
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "clinic_id"}, {Name: "weekday"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_open", "open_time", "close_time", "updated_at"}),
	}).Create(&hours).Error
	if err != nil {
		return fmt.Errorf("failed to save clinic hours: %w", err)
	}
	return nil
}

func (d *GormDirectory) GetDoctorSchedule(ctx context.Context, doctorID string, date time.Time) ([]models.DoctorSchedule, []models.DoctorScheduleException, error) {
	db := d.db.WithContext(ctx)

	var weekly []models.DoctorSchedule
	if err := db.Where("doctor_id = ?", doctorID).Order("weekday ASC").Find(&weekly).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load doctor schedule: %w", err)
	}

	from, to := scheduling.DayBounds(date)
	var exceptions []models.DoctorScheduleException
	if err := db.Where("doctor_id = ? AND date >= ? AND date < ?", doctorID, from, to).Find(&exceptions).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load schedule exceptions: %w", err)
	}
	return weekly, exceptions, nil
}

// UpsertDoctorSchedule replaces the template rows for the given weekdays.
func (d *GormDirectory) UpsertDoctorSchedule(ctx context.Context, doctorID string, days []models.DoctorSchedule) error {
	for i := range days {
		days[i].DoctorID = doctorID
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doctor_id"}, {Name: "weekday"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_working", "start_time", "end_time", "break_start", "break_end", "slot_duration", "updated_at",
		}),
	}).Create(&days).Error
	if err != nil {
		return fmt.Errorf("failed to save doctor schedule: %w", err)
	}
	return nil
}

func (d *GormDirectory) AddScheduleException(ctx context.Context, ex *models.DoctorScheduleException) error {
	ex.Date = scheduling.DateOnly(ex.Date)
	if err := d.db.WithContext(ctx).Create(ex).Error; err != nil {
		return fmt.Errorf("failed to save schedule exception: %w", err)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
