package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-booking-server/internal/config"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/services"
	"clinic-booking-server/internal/utils"
)

// Fixed ids so tokens issued with the token command stay valid across restarts.
const (
	demoClinicID  = "demo-clinic"
	demoDoctorID  = "demo-doctor"
	demoPatientID = "demo-patient"
	demoStaffID   = "demo-staff"
)

func demoClinic() models.Clinic {
	return models.Clinic{
		BaseModel: models.BaseModel{ID: demoClinicID},
		Name:      "Demo Family Clinic",
		Address:   "1 Main Street",
		Timezone:  "UTC",
	}
}

func demoUsers() []models.User {
	return []models.User{
		{BaseModel: models.BaseModel{ID: demoDoctorID}, Email: "doctor@demo.local", FirstName: "Dana", LastName: "Reyes", Role: models.RoleDoctor, Specialty: "general practice"},
		{BaseModel: models.BaseModel{ID: demoPatientID}, Email: "patient@demo.local", FirstName: "Sam", LastName: "Lee", Role: models.RolePatient},
		{BaseModel: models.BaseModel{ID: demoStaffID}, Email: "desk@demo.local", FirstName: "Front", LastName: "Desk", Role: models.RoleStaff},
	}
}

// seedSchedules opens the clinic on weekdays and gives the doctor a
// weekday template with a lunch break.
func seedSchedules(ctx context.Context, dir *services.DirectoryService) error {
	hours := make([]models.ClinicHours, 0, 7)
	days := make([]models.DoctorSchedule, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		open := wd != time.Sunday && wd != time.Saturday
		h := models.ClinicHours{Weekday: int(wd), IsOpen: open}
		d := models.DoctorSchedule{Weekday: int(wd), IsWorking: open}
		if open {
			h.OpenTime, h.CloseTime = "08:00", "18:00"
			d.StartTime, d.EndTime = "09:00", "17:00"
			d.BreakStart, d.BreakEnd = "12:00", "13:00"
			d.SlotDuration = 30
		}
		hours = append(hours, h)
		days = append(days, d)
	}
	if err := dir.SetClinicHours(ctx, demoClinicID, hours); err != nil {
		return err
	}
	return dir.SetDoctorSchedule(ctx, demoDoctorID, days)
}

func seedMemory(ctx context.Context, mem *repository.MemoryStore) error {
	mem.PutClinic(demoClinic())
	for _, u := range demoUsers() {
		mem.PutUser(u)
	}
	return seedSchedules(ctx, services.NewDirectoryService(mem))
}

func seedGorm(ctx context.Context, db *gorm.DB) error {
	clinic := demoClinic()
	users := demoUsers()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&clinic).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error
	})
	if err != nil {
		return err
	}
	return seedSchedules(ctx, services.NewDirectoryService(repository.NewGormDirectory(db)))
}

// logDemoTokens prints ready-to-use tokens for the in-memory demo users.
func logDemoTokens(logger zerolog.Logger, cfg *config.Config) {
	ttl := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	for _, u := range demoUsers() {
		token, err := utils.GenerateAccessToken(u.ID, u.Role, cfg.JWTSecret, ttl)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", u.ID).Msg("failed to issue demo token")
			continue
		}
		logger.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Str("token", token).Msg("demo user")
	}
	logger.Info().Str("clinic_id", demoClinicID).Msg("demo clinic")
}
