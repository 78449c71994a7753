package models

import "time"

// DoctorSchedule is a doctor's working-hours template for one weekday.
type DoctorSchedule struct {
	BaseModel
	DoctorID     string `gorm:"size:36;uniqueIndex:idx_doctor_weekday;not null" json:"doctorId"`
	Weekday      int    `gorm:"uniqueIndex:idx_doctor_weekday" json:"weekday"` // 0 = Sunday
	IsWorking    bool   `json:"isWorking"`
	StartTime    string `gorm:"size:5" json:"startTime"`
	EndTime      string `gorm:"size:5" json:"endTime"`
	BreakStart   string `gorm:"size:5" json:"breakStart,omitempty"`
	BreakEnd     string `gorm:"size:5" json:"breakEnd,omitempty"`
	SlotDuration int    `gorm:"default:30" json:"slotDuration"` // minutes
}

// ExceptionKind classifies a date-specific schedule exception
type ExceptionKind string

const (
	ExceptionUnavailable ExceptionKind = "unavailable"
	ExceptionCustomHours ExceptionKind = "custom_hours"
)

// DoctorScheduleException overrides the weekly template on a specific date.
type DoctorScheduleException struct {
	BaseModel
	DoctorID  string        `gorm:"size:36;index;not null" json:"doctorId"`
	Date      time.Time     `gorm:"type:date;index" json:"date"`
	Kind      ExceptionKind `gorm:"size:20" json:"kind"`
	StartTime string        `gorm:"size:5" json:"startTime,omitempty"`
	EndTime   string        `gorm:"size:5" json:"endTime,omitempty"`
	Reason    string        `gorm:"size:255" json:"reason,omitempty"`
}
