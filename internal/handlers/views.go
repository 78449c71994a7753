package handlers

import (
	"time"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
)

// AppointmentView is the API projection of an appointment. Patients never see
// the risk scores or the communication log.
type AppointmentView struct {
	ID          string                   `json:"id"`
	PatientID   string                   `json:"patientId"`
	DoctorID    string                   `json:"doctorId"`
	ClinicID    string                   `json:"clinicId"`
	Date        string                   `json:"date"`
	StartTime   string                   `json:"startTime"`
	EndTime     string                   `json:"endTime"`
	Duration    int                      `json:"duration"`
	Timezone    string                   `json:"timezone"`
	Type        string                   `json:"type,omitempty"`
	Reason      string                   `json:"reason,omitempty"`
	Notes       string                   `json:"notes,omitempty"`
	Status      models.AppointmentStatus `json:"status"`
	IsEmergency bool                     `json:"isEmergency"`

	CancellationRisk models.RiskLevel `json:"cancellationRisk,omitempty"`
	NoShowRisk       models.RiskLevel `json:"noShowRisk,omitempty"`

	Cancellation *models.CancellationInfo `json:"cancellation,omitempty"`
	Reschedule   *models.RescheduleInfo   `json:"reschedule,omitempty"`
	CheckIn      *models.CheckInInfo      `json:"checkIn,omitempty"`

	Permissions AppointmentPermissions `json:"permissions"`

	Version   int                     `json:"version"`
	CreatedBy string                  `json:"createdBy,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
	Logs      []models.AppointmentLog `json:"logs,omitempty"`
}

// AppointmentPermissions tells clients which actions are currently possible.
type AppointmentPermissions struct {
	CanCancel     bool `json:"canCancel"`
	CanReschedule bool `json:"canReschedule"`
	CanCheckIn    bool `json:"canCheckIn"`
	IsOverdue     bool `json:"isOverdue"`
}

// NewAppointmentView projects a for a caller with the given role.
func NewAppointmentView(a *models.Appointment, role models.Role, now time.Time, window time.Duration) AppointmentView {
	v := AppointmentView{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		ClinicID:    a.ClinicID,
		Date:        a.Date.Format(time.DateOnly),
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Duration:    a.Duration,
		Timezone:    a.Timezone,
		Type:        a.Type,
		Reason:      a.Reason,
		Notes:       a.Notes,
		Status:      a.Status,
		IsEmergency: a.IsEmergency,
		Permissions: AppointmentPermissions{
			CanCancel:     scheduling.CanCancel(a, now, window),
			CanReschedule: scheduling.CanReschedule(a, now, window),
			CanCheckIn:    scheduling.CanCheckIn(a, now),
			IsOverdue:     scheduling.IsOverdue(a, now),
		},
		Version:   a.Version,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Status == models.StatusCancelled {
		info := a.Cancellation
		v.Cancellation = &info
	}
	if a.Reschedule.RescheduledAt != nil {
		info := a.Reschedule
		v.Reschedule = &info
	}
	if a.CheckIn.CheckedInAt != nil {
		info := a.CheckIn
		v.CheckIn = &info
	}
	if role != models.RolePatient {
		v.CancellationRisk = a.CancellationRisk
		v.NoShowRisk = a.NoShowRisk
		v.Logs = a.Logs
	}
	return v
}
