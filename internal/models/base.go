package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string // "mysql" or "postgres"
	DSN    string
	Debug  bool
}

// OpenDB opens a gorm connection for the configured driver without migrating.
func OpenDB(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "", "mysql":
		dialector = mysql.Open(config.DSN)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	gormConfig := &gorm.Config{}
	if !config.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}
	return gorm.Open(dialector, gormConfig)
}

// InitDB initializes database connection and migrates the schema
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	db, err := OpenDB(config)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the tables of all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Clinic{},
		&ClinicHours{},
		&DoctorSchedule{},
		&DoctorScheduleException{},
		&Appointment{},
		&AppointmentLog{},
	)
}
