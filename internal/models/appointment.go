package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppointmentStatus represents the lifecycle status of an appointment
type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCheckedIn   AppointmentStatus = "checked_in"
	StatusInProgress  AppointmentStatus = "in_progress"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// RiskLevel is the cancellation / no-show risk tier assigned at booking time
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RefundStatus tracks the refund attached to a cancellation
type RefundStatus string

const (
	RefundPending       RefundStatus = "pending"
	RefundNotApplicable RefundStatus = "not_applicable"
)

// CancellationInfo is recorded when an appointment is cancelled.
type CancellationInfo struct {
	Reason       string          `gorm:"size:500" json:"reason,omitempty"`
	CancelledBy  string          `gorm:"size:36" json:"cancelledBy,omitempty"`
	CancelledAt  *time.Time      `json:"cancelledAt,omitempty"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"refundAmount"`
	RefundStatus RefundStatus    `gorm:"size:20" json:"refundStatus,omitempty"`
}

// RescheduleInfo keeps the previous slot of the last reschedule.
type RescheduleInfo struct {
	Reason            string     `gorm:"size:500" json:"reason,omitempty"`
	RescheduledBy     string     `gorm:"size:36" json:"rescheduledBy,omitempty"`
	RescheduledAt     *time.Time `json:"rescheduledAt,omitempty"`
	PreviousDate      *time.Time `gorm:"type:date" json:"previousDate,omitempty"`
	PreviousStartTime string     `gorm:"size:5" json:"previousStartTime,omitempty"`
	PreviousEndTime   string     `gorm:"size:5" json:"previousEndTime,omitempty"`
}

// CheckInInfo covers check-in through completion.
type CheckInInfo struct {
	CheckedInAt     *time.Time `json:"checkedInAt,omitempty"`
	CheckedInBy     string     `gorm:"size:36" json:"checkedInBy,omitempty"`
	WaitingTime     *int       `json:"waitingTime,omitempty"` // minutes
	ActualStartTime *time.Time `json:"actualStartTime,omitempty"`
	ActualEndTime   *time.Time `json:"actualEndTime,omitempty"`
	TotalTime       *int       `json:"totalTime,omitempty"` // minutes
}

// Appointment is a single booking of a patient with a doctor at a clinic.
// Date carries the calendar day; StartTime/EndTime are "HH:MM" wall-clock
// strings in the clinic's Timezone.
type Appointment struct {
	ID        string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	PatientID string `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID  string `gorm:"size:36;index:idx_doctor_date;not null" json:"doctorId"`
	ClinicID  string `gorm:"size:36;index;not null" json:"clinicId"`

	Date      time.Time `gorm:"type:date;index:idx_doctor_date;not null" json:"date"`
	StartTime string    `gorm:"size:5;not null" json:"startTime"`
	EndTime   string    `gorm:"size:5;not null" json:"endTime"`
	Duration  int       `gorm:"not null" json:"duration"`
	Timezone  string    `gorm:"size:64" json:"timezone"`

	Type        string            `gorm:"size:50" json:"type"`
	Reason      string            `gorm:"size:500" json:"reason"`
	Notes       string            `gorm:"type:text" json:"notes"`
	Status      AppointmentStatus `gorm:"size:20;index;default:'scheduled'" json:"status"`
	IsEmergency bool              `gorm:"default:false" json:"isEmergency"`

	CancellationRisk RiskLevel `gorm:"size:10" json:"cancellationRisk"`
	NoShowRisk       RiskLevel `gorm:"size:10" json:"noShowRisk"`

	Cancellation CancellationInfo `gorm:"embedded;embeddedPrefix:cancellation_" json:"cancellation"`
	Reschedule   RescheduleInfo   `gorm:"embedded;embeddedPrefix:reschedule_" json:"reschedule"`
	CheckIn      CheckInInfo      `gorm:"embedded;embeddedPrefix:checkin_" json:"checkIn"`

	Version        int    `gorm:"not null;default:0" json:"version"`
	CreatedBy      string `gorm:"size:36" json:"createdBy"`
	LastModifiedBy string `gorm:"size:36" json:"lastModifiedBy"`

	// Append-only communication log
	Logs []AppointmentLog `gorm:"foreignKey:AppointmentID" json:"logs,omitempty"`
}

// LogType names the kind of communication-log entry
type LogType string

const (
	LogCreated     LogType = "created"
	LogConfirmed   LogType = "confirmation"
	LogCancelled   LogType = "cancellation"
	LogRescheduled LogType = "reschedule"
	LogCheckedIn   LogType = "check_in"
	LogStarted     LogType = "treatment_start"
	LogCompleted   LogType = "completion"
	LogNoShow      LogType = "no_show"
	LogNote        LogType = "note"
)

// AppointmentLog is one entry of an appointment's communication log.
type AppointmentLog struct {
	BaseModel
	AppointmentID string    `gorm:"type:varchar(32);index;not null" json:"appointmentId"`
	Type          LogType   `gorm:"size:30" json:"type"`
	Method        string    `gorm:"size:20" json:"method"`
	Content       string    `gorm:"type:text" json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	Actor         string    `gorm:"size:36" json:"actor"`
}

// Clone returns a deep copy so a failed action never leaks into a stored record.
func (a *Appointment) Clone() *Appointment {
	c := *a
	c.Logs = append([]AppointmentLog(nil), a.Logs...)
	c.Cancellation.CancelledAt = cloneTime(a.Cancellation.CancelledAt)
	c.Reschedule.RescheduledAt = cloneTime(a.Reschedule.RescheduledAt)
	c.Reschedule.PreviousDate = cloneTime(a.Reschedule.PreviousDate)
	c.CheckIn.CheckedInAt = cloneTime(a.CheckIn.CheckedInAt)
	c.CheckIn.ActualStartTime = cloneTime(a.CheckIn.ActualStartTime)
	c.CheckIn.ActualEndTime = cloneTime(a.CheckIn.ActualEndTime)
	c.CheckIn.WaitingTime = cloneInt(a.CheckIn.WaitingTime)
	c.CheckIn.TotalTime = cloneInt(a.CheckIn.TotalTime)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
