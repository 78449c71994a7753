package services

import (
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
)

// patientActions are the only actions a patient may take on their own appointment.
var patientActions = map[scheduling.Action]bool{
	scheduling.ActionConfirm:    true,
	scheduling.ActionCancel:     true,
	scheduling.ActionReschedule: true,
	scheduling.ActionNote:       true,
}

func canView(actor scheduling.Actor, a *models.Appointment) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleStaff:
		return true
	case models.RoleDoctor:
		return a.DoctorID == actor.ID
	case models.RolePatient:
		return a.PatientID == actor.ID
	}
	return false
}

func authorizeAction(actor scheduling.Actor, a *models.Appointment, action scheduling.Action) error {
	if actor.ID == "" {
		return scheduling.Errorf(scheduling.ErrAccessDenied, "actor identity is required")
	}
	if !canView(actor, a) {
		return scheduling.Errorf(scheduling.ErrAccessDenied, "you are not authorized to modify this appointment")
	}
	if actor.Role == models.RolePatient && !patientActions[action] {
		return scheduling.Errorf(scheduling.ErrAccessDenied, "patients cannot %s an appointment", action).
			With("action", string(action))
	}
	return nil
}
