package scheduling

import (
	"sort"
	"time"

	"clinic-booking-server/internal/models"
)

// activeStatuses count toward conflict detection.
var activeStatuses = map[models.AppointmentStatus]bool{
	models.StatusScheduled:  true,
	models.StatusConfirmed:  true,
	models.StatusInProgress: true,
}

// ActiveStatuses lists the statuses that occupy a doctor's time.
func ActiveStatuses() []models.AppointmentStatus {
	return []models.AppointmentStatus{models.StatusScheduled, models.StatusConfirmed, models.StatusInProgress}
}

// IsActiveStatus reports whether s occupies the doctor's time.
func IsActiveStatus(s models.AppointmentStatus) bool {
	return activeStatuses[s]
}

// Candidate is a prospective (doctor, date, range) placement.
type Candidate struct {
	DoctorID string
	Date     time.Time
	Range    TimeRange
	// ExcludeID skips the appointment being moved.
	ExcludeID string
}

// DateOnly strips the time of day, keeping the calendar date as UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayBounds returns [start of day, start of next day) for date's calendar day.
// Stores query stored dates against these bounds since a stored date may carry
// a time of day.
func DayBounds(date time.Time) (time.Time, time.Time) {
	from := DateOnly(date)
	return from, from.AddDate(0, 0, 1)
}

// SameDay compares calendar dates using DayBounds.
func SameDay(stored, date time.Time) bool {
	from, to := DayBounds(date)
	d := time.Date(stored.Year(), stored.Month(), stored.Day(), stored.Hour(), stored.Minute(), stored.Second(), stored.Nanosecond(), time.UTC)
	return !d.Before(from) && d.Before(to)
}

// FindConflict returns the earliest active appointment of the candidate's
// doctor on the candidate's date whose range overlaps the candidate, or nil.
func FindConflict(existing []models.Appointment, c Candidate) (*models.Appointment, error) {
	type entry struct {
		idx int
		r   TimeRange
	}
	var matches []entry
	for i := range existing {
		a := &existing[i]
		if a.DoctorID != c.DoctorID || (c.ExcludeID != "" && a.ID == c.ExcludeID) || !IsActiveStatus(a.Status) {
			continue
		}
		if !SameDay(a.Date, c.Date) {
			continue
		}
		r, err := ParseRange(a.StartTime, a.EndTime)
		if err != nil {
			return nil, err
		}
		if r.Overlaps(c.Range) {
			matches = append(matches, entry{idx: i, r: r})
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].r.Start < matches[j].r.Start })
	return &existing[matches[0].idx], nil
}

// ConflictError builds the SchedulingConflict rejection for an existing appointment.
func ConflictError(existing *models.Appointment) *Error {
	return Errorf(ErrSchedulingConflict, "doctor already has appointment %s from %s to %s",
		existing.ID, existing.StartTime, existing.EndTime).
		With("existingAppointmentId", existing.ID).
		With("existingStartTime", existing.StartTime).
		With("existingEndTime", existing.EndTime)
}

// BookedRanges extracts the ranges of active appointments, for availability.
func BookedRanges(appointments []models.Appointment) ([]TimeRange, error) {
	ranges := make([]TimeRange, 0, len(appointments))
	for _, a := range appointments {
		if !IsActiveStatus(a.Status) {
			continue
		}
		r, err := ParseRange(a.StartTime, a.EndTime)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}
