package scheduling

import (
	"strings"
	"time"

	"clinic-booking-server/internal/models"
)

// Action is a booking or lifecycle action.
type Action string

const (
	ActionCreate     Action = "create"
	ActionConfirm    Action = "confirm"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionCheckIn    Action = "check_in"
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionNoShow     Action = "no_show"
	ActionNote       Action = "note"
)

// ParseAction accepts snake_case, kebab-case and camelCase spellings.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "confirm":
		return ActionConfirm, nil
	case "cancel":
		return ActionCancel, nil
	case "reschedule":
		return ActionReschedule, nil
	case "check_in", "checkin":
		return ActionCheckIn, nil
	case "start":
		return ActionStart, nil
	case "complete":
		return ActionComplete, nil
	case "no_show", "noshow":
		return ActionNoShow, nil
	case "note", "notes":
		return ActionNote, nil
	}
	return "", Errorf(ErrInvalidRequest, "unknown action %q", s)
}

// Event is emitted after every successful booking or transition for the
// notification dispatcher to fan out.
type Event struct {
	AppointmentID string                   `json:"appointmentId"`
	Action        Action                   `json:"action"`
	Status        models.AppointmentStatus `json:"status"`
	PatientID     string                   `json:"patientId"`
	DoctorID      string                   `json:"doctorId"`
	ClinicID      string                   `json:"clinicId"`
	Actor         string                   `json:"actor"`
	Timestamp     time.Time                `json:"timestamp"`
}

func newEvent(a *models.Appointment, action Action, actor string, now time.Time) Event {
	return Event{
		AppointmentID: a.ID,
		Action:        action,
		Status:        a.Status,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		ClinicID:      a.ClinicID,
		Actor:         actor,
		Timestamp:     now,
	}
}

// CreatedEvent is the event emitted once a new appointment is stored.
func CreatedEvent(a *models.Appointment, actor string, now time.Time) Event {
	return newEvent(a, ActionCreate, actor, now)
}
