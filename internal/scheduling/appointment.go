package scheduling

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"clinic-booking-server/internal/models"
)

// BookingDraft is a validated-at-construction request for a new appointment.
type BookingDraft struct {
	PatientID   string
	DoctorID    string
	ClinicID    string
	Date        time.Time
	StartTime   string
	EndTime     string
	Timezone    string
	Type        string
	Reason      string
	Notes       string
	IsEmergency bool
	CreatedBy   string
}

// NewAppointmentID returns a human-readable id such as APT-20250610-9F2C41D0.
func NewAppointmentID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "APT-" + now.UTC().Format("20060102") + "-" + suffix
}

// NewAppointment builds the aggregate from a draft. Emergency bookings start
// confirmed; everything else starts scheduled. Risk is scored once, here.
func NewAppointment(d BookingDraft, now time.Time) (*models.Appointment, error) {
	if d.PatientID == "" || d.DoctorID == "" || d.ClinicID == "" {
		return nil, Errorf(ErrInvalidRequest, "patient, doctor and clinic are required")
	}
	if d.Date.IsZero() {
		return nil, Errorf(ErrInvalidRequest, "date is required")
	}
	r, err := ParseRange(d.StartTime, d.EndTime)
	if err != nil {
		return nil, err
	}
	if err := CheckDuration(r.Duration()); err != nil {
		return nil, err
	}

	a := &models.Appointment{
		ID:          NewAppointmentID(now),
		PatientID:   d.PatientID,
		DoctorID:    d.DoctorID,
		ClinicID:    d.ClinicID,
		Date:        DateOnly(d.Date),
		StartTime:   ToHHMM(r.Start),
		EndTime:     ToHHMM(r.End),
		Duration:    r.Duration(),
		Timezone:    d.Timezone,
		Type:        d.Type,
		Reason:      d.Reason,
		Notes:       d.Notes,
		Status:      models.StatusScheduled,
		IsEmergency: d.IsEmergency,
		CreatedBy:   d.CreatedBy,
	}
	if d.IsEmergency {
		a.Status = models.StatusConfirmed
	}

	lead, err := HoursUntilStart(a, now)
	if err != nil {
		return nil, err
	}
	risk := ScoreRisk(lead)
	a.CancellationRisk = risk.CancellationRisk
	a.NoShowRisk = risk.NoShowRisk

	a.LastModifiedBy = d.CreatedBy
	a.Logs = append(a.Logs, newLog(a, models.LogCreated, "Appointment booked for "+a.StartTime+"-"+a.EndTime, d.CreatedBy, now))
	return a, nil
}

var knownStatuses = map[models.AppointmentStatus]bool{
	models.StatusScheduled: true, models.StatusConfirmed: true, models.StatusCheckedIn: true,
	models.StatusInProgress: true, models.StatusCompleted: true, models.StatusCancelled: true,
	models.StatusNoShow: true, models.StatusRescheduled: true,
}

// Validate checks the stored-record invariants; stores call it before every write.
func Validate(a *models.Appointment) error {
	if a.ID == "" || a.PatientID == "" || a.DoctorID == "" || a.ClinicID == "" {
		return Errorf(ErrInvalidRequest, "appointment id, patient, doctor and clinic are required")
	}
	r, err := ParseRange(a.StartTime, a.EndTime)
	if err != nil {
		return err
	}
	if err := CheckDuration(r.Duration()); err != nil {
		return err
	}
	if a.Duration != r.Duration() {
		return Errorf(ErrInvalidDuration, "duration %d does not match %s", a.Duration, r)
	}
	if !knownStatuses[a.Status] {
		return Errorf(ErrInvalidRequest, "unknown status %q", a.Status)
	}
	return nil
}

func newLog(a *models.Appointment, t models.LogType, content, actor string, now time.Time) models.AppointmentLog {
	return models.AppointmentLog{
		AppointmentID: a.ID,
		Type:          t,
		Method:        "system",
		Content:       content,
		Timestamp:     now,
		Actor:         actor,
	}
}
