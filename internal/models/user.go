package models

import (
	"time"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// IsStaff reports whether the role manages appointments on behalf of the clinic.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// User represents a patient, doctor or clinic staff member
type User struct {
	BaseModel
	Email       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName   string     `gorm:"size:100" json:"firstName"`
	LastName    string     `gorm:"size:100" json:"lastName"`
	Role        Role       `gorm:"size:20;default:'patient'" json:"role"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Specialty   string     `gorm:"size:100" json:"specialty,omitempty"`

	// Relations (not always preloaded)
	DoctorAppointments  []Appointment    `gorm:"foreignKey:DoctorID" json:"-"`
	PatientAppointments []Appointment    `gorm:"foreignKey:PatientID" json:"-"`
	Schedules           []DoctorSchedule `gorm:"foreignKey:DoctorID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	Specialty string    `json:"specialty,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sanitize creates a UserSanitized struct from a User model, excluding contact data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Specialty: u.Specialty,
		CreatedAt: u.CreatedAt,
	}
}
