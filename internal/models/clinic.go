package models

// Clinic is a physical location where appointments take place.
type Clinic struct {
	BaseModel
	Name     string `gorm:"size:255;not null" json:"name"`
	Address  string `gorm:"size:255" json:"address,omitempty"`
	Phone    string `gorm:"size:50" json:"phone,omitempty"`
	Timezone string `gorm:"size:64;default:'UTC'" json:"timezone"` // e.g. "Europe/Berlin"

	Hours []ClinicHours `gorm:"foreignKey:ClinicID" json:"hours,omitempty"`
}

// ClinicHours is the operating-hours row for one weekday.
type ClinicHours struct {
	BaseModel
	ClinicID  string `gorm:"size:36;uniqueIndex:idx_clinic_weekday;not null" json:"clinicId"`
	Weekday   int    `gorm:"uniqueIndex:idx_clinic_weekday" json:"weekday"` // 0 = Sunday
	IsOpen    bool   `json:"isOpen"`
	OpenTime  string `gorm:"size:5" json:"openTime"`
	CloseTime string `gorm:"size:5" json:"closeTime"`
}
