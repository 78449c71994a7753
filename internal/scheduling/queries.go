package scheduling

import (
	"time"

	"clinic-booking-server/internal/models"
)

// Location resolves an IANA zone name; empty means UTC.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, Errorf(ErrInvalidRequest, "unknown timezone %q", tz)
	}
	return loc, nil
}

// At combines a calendar date with an "HH:MM" wall-clock time in tz.
func At(date time.Time, hhmm string, tz string) (time.Time, error) {
	minutes, err := ToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}

// StartsAt is the absolute start instant of the appointment.
func StartsAt(a *models.Appointment) (time.Time, error) {
	return At(a.Date, a.StartTime, a.Timezone)
}

// HoursUntilStart is negative once the appointment has started.
func HoursUntilStart(a *models.Appointment, now time.Time) (float64, error) {
	start, err := StartsAt(a)
	if err != nil {
		return 0, err
	}
	return start.Sub(now).Hours(), nil
}

// IsActive reports whether the appointment blocks the doctor's time.
func IsActive(a *models.Appointment) bool {
	return IsActiveStatus(a.Status)
}

// IsTerminal reports whether no further lifecycle transitions apply.
func IsTerminal(a *models.Appointment) bool {
	switch a.Status {
	case models.StatusCompleted, models.StatusCancelled, models.StatusNoShow:
		return true
	}
	return false
}

func isPending(a *models.Appointment) bool {
	return a.Status == models.StatusScheduled || a.Status == models.StatusConfirmed
}

func outsideWindow(a *models.Appointment, now time.Time, window time.Duration) bool {
	start, err := StartsAt(a)
	if err != nil {
		return false
	}
	return start.Sub(now) >= window
}

// CanCancel reports whether a cancel would currently be accepted.
func CanCancel(a *models.Appointment, now time.Time, window time.Duration) bool {
	return isPending(a) && outsideWindow(a, now, window)
}

// CanReschedule has the same status and notice rules as CanCancel.
func CanReschedule(a *models.Appointment, now time.Time, window time.Duration) bool {
	return isPending(a) && outsideWindow(a, now, window)
}

// CanCheckIn: confirmed and today in the clinic's timezone.
func CanCheckIn(a *models.Appointment, now time.Time) bool {
	return a.Status == models.StatusConfirmed && isAppointmentDay(a, now)
}

// IsOverdue: still waiting to be seen although the start time has passed.
func IsOverdue(a *models.Appointment, now time.Time) bool {
	if !isPending(a) {
		return false
	}
	start, err := StartsAt(a)
	if err != nil {
		return false
	}
	return now.After(start)
}

func isAppointmentDay(a *models.Appointment, now time.Time) bool {
	loc, err := Location(a.Timezone)
	if err != nil {
		return false
	}
	local := now.In(loc)
	return local.Year() == a.Date.Year() && local.Month() == a.Date.Month() && local.Day() == a.Date.Day()
}
