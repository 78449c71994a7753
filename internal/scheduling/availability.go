package scheduling

import (
	"time"

	"clinic-booking-server/internal/models"
)

// Duration bounds for a single appointment, in minutes.
const (
	MinDuration         = 15
	MaxDuration         = 480
	DefaultSlotDuration = 30
)

// Reasons reported with an empty availability result.
const (
	ReasonClinicClosed     = "clinic closed"
	ReasonDoctorNotWorking = "doctor not working"
)

// DaySchedule is a doctor's working window for one concrete date.
type DaySchedule struct {
	Working      bool   `json:"working"`
	Start        string `json:"start,omitempty"`
	End          string `json:"end,omitempty"`
	BreakStart   string `json:"breakStart,omitempty"`
	BreakEnd     string `json:"breakEnd,omitempty"`
	SlotDuration int    `json:"slotDuration,omitempty"`
}

// ClinicDay is a clinic's operating hours for one concrete date.
type ClinicDay struct {
	Open      bool   `json:"open"`
	OpenTime  string `json:"openTime,omitempty"`
	CloseTime string `json:"closeTime,omitempty"`
}

// AvailabilityInput is everything the calculator needs; it performs no I/O.
type AvailabilityInput struct {
	Doctor DaySchedule
	Clinic ClinicDay
	// Booked holds the ranges of the doctor's active appointments that day.
	Booked []TimeRange
	// Duration of the requested slots; zero means the template's slot duration.
	Duration int
}

// Slot is a free, bookable range.
type Slot struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration"`
}

// Availability is the calculator's answer. Reason is set when Slots is empty
// because the clinic or the doctor is off that day.
type Availability struct {
	Slots  []Slot `json:"slots"`
	Reason string `json:"reason,omitempty"`
}

// ComputeAvailability walks the doctor's window in steps of the requested
// duration and keeps every slot that misses the break, misses every booked
// range and lies within clinic hours. A trailing partial slot is dropped.
func ComputeAvailability(in AvailabilityInput) (Availability, error) {
	if !in.Clinic.Open {
		return Availability{Slots: []Slot{}, Reason: ReasonClinicClosed}, nil
	}
	if !in.Doctor.Working {
		return Availability{Slots: []Slot{}, Reason: ReasonDoctorNotWorking}, nil
	}

	duration := in.Duration
	if duration == 0 {
		duration = in.Doctor.SlotDuration
	}
	if duration == 0 {
		duration = DefaultSlotDuration
	}
	if err := CheckDuration(duration); err != nil {
		return Availability{}, err
	}

	window, err := ParseRange(in.Doctor.Start, in.Doctor.End)
	if err != nil {
		return Availability{}, err
	}
	breakRange, hasBreak, err := in.Doctor.breakRange()
	if err != nil {
		return Availability{}, err
	}
	clinic, err := ParseRange(in.Clinic.OpenTime, in.Clinic.CloseTime)
	if err != nil {
		return Availability{}, err
	}

	slots := make([]Slot, 0, window.Duration()/duration)
	for start := window.Start; start+duration <= window.End; start += duration {
		candidate := TimeRange{Start: start, End: start + duration}
		if hasBreak && candidate.Overlaps(breakRange) {
			continue
		}
		if !clinic.Contains(candidate) {
			continue
		}
		if overlapsAny(candidate, in.Booked) {
			continue
		}
		slots = append(slots, Slot{
			Start:    ToHHMM(candidate.Start),
			End:      ToHHMM(candidate.End),
			Duration: duration,
		})
	}
	return Availability{Slots: slots}, nil
}

// CheckDuration enforces the 15-480 minute bounds.
func CheckDuration(minutes int) error {
	if minutes < MinDuration || minutes > MaxDuration {
		return Errorf(ErrInvalidDuration, "duration %d must be between %d and %d minutes", minutes, MinDuration, MaxDuration)
	}
	return nil
}

func (d DaySchedule) breakRange() (TimeRange, bool, error) {
	if d.BreakStart == "" || d.BreakEnd == "" {
		return TimeRange{}, false, nil
	}
	r, err := ParseRange(d.BreakStart, d.BreakEnd)
	if err != nil {
		return TimeRange{}, false, err
	}
	return r, true, nil
}

// Accepts reports whether r fits the doctor's working window without
// touching the break.
func (d DaySchedule) Accepts(r TimeRange) (bool, error) {
	if !d.Working {
		return false, nil
	}
	window, err := ParseRange(d.Start, d.End)
	if err != nil {
		return false, err
	}
	if !window.Contains(r) {
		return false, nil
	}
	brk, hasBreak, err := d.breakRange()
	if err != nil {
		return false, err
	}
	return !(hasBreak && r.Overlaps(brk)), nil
}

// Accepts reports whether r lies within the clinic's open hours.
func (c ClinicDay) Accepts(r TimeRange) (bool, error) {
	if !c.Open {
		return false, nil
	}
	hours, err := ParseRange(c.OpenTime, c.CloseTime)
	if err != nil {
		return false, err
	}
	return hours.Contains(r), nil
}

func overlapsAny(r TimeRange, booked []TimeRange) bool {
	for _, b := range booked {
		if r.Overlaps(b) {
			return true
		}
	}
	return false
}

// ResolveDaySchedule picks the weekday template for date and applies any
// date-specific exception on top of it.
func ResolveDaySchedule(weekly []models.DoctorSchedule, exceptions []models.DoctorScheduleException, date time.Time) DaySchedule {
	var day DaySchedule
	weekday := int(date.Weekday())
	for _, tpl := range weekly {
		if tpl.Weekday != weekday {
			continue
		}
		day = DaySchedule{
			Working:      tpl.IsWorking,
			Start:        tpl.StartTime,
			End:          tpl.EndTime,
			BreakStart:   tpl.BreakStart,
			BreakEnd:     tpl.BreakEnd,
			SlotDuration: tpl.SlotDuration,
		}
		break
	}

	for _, ex := range exceptions {
		if !SameDay(ex.Date, date) {
			continue
		}
		switch ex.Kind {
		case models.ExceptionUnavailable:
			return DaySchedule{Working: false}
		case models.ExceptionCustomHours:
			day.Working = true
			day.Start = ex.StartTime
			day.End = ex.EndTime
			if day.SlotDuration == 0 {
				day.SlotDuration = DefaultSlotDuration
			}
		}
	}
	return day
}

// ResolveClinicDay returns the clinic's hours for date; a missing row means closed.
func ResolveClinicDay(hours []models.ClinicHours, date time.Time) ClinicDay {
	weekday := int(date.Weekday())
	for _, h := range hours {
		if h.Weekday == weekday {
			return ClinicDay{Open: h.IsOpen, OpenTime: h.OpenTime, CloseTime: h.CloseTime}
		}
	}
	return ClinicDay{}
}
