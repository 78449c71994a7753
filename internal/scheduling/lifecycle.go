package scheduling

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clinic-booking-server/internal/models"
)

// DefaultCancellationWindow is the minimum notice for cancel and reschedule.
const DefaultCancellationWindow = 24 * time.Hour

// Actor is whoever triggers an action; its ID lands in the audit trail.
type Actor struct {
	ID   string
	Role models.Role
}

// CancelRequest is the payload of a cancel action.
type CancelRequest struct {
	Reason       string
	RefundAmount decimal.Decimal
}

// RescheduleRequest moves the appointment to a new date and range.
type RescheduleRequest struct {
	Date      time.Time
	StartTime string
	EndTime   string
	Reason    string
}

// CompleteRequest optionally overrides the computed total time.
type CompleteRequest struct {
	TotalMinutes *int
}

// NoShowRequest is the payload of a no-show action.
type NoShowRequest struct {
	Reason string
}

// NoteRequest attaches a free-text note.
type NoteRequest struct {
	Text string
}

// Lifecycle owns the appointment status machine:
//
//	scheduled|confirmed -> confirmed | cancelled | rescheduled | no_show
//	confirmed           -> checked_in
//	checked_in          -> in_progress
//	in_progress         -> completed
//
// A rejected action leaves the appointment untouched.
type Lifecycle struct {
	CancellationWindow time.Duration
}

// NewLifecycle returns a lifecycle with the given notice window (24h if zero).
func NewLifecycle(window time.Duration) *Lifecycle {
	if window <= 0 {
		window = DefaultCancellationWindow
	}
	return &Lifecycle{CancellationWindow: window}
}

func (l *Lifecycle) window() time.Duration {
	if l == nil || l.CancellationWindow <= 0 {
		return DefaultCancellationWindow
	}
	return l.CancellationWindow
}

// Confirm is allowed from scheduled or confirmed and always logs.
func (l *Lifecycle) Confirm(a *models.Appointment, actor Actor, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionConfirm, models.StatusScheduled, models.StatusConfirmed); err != nil {
		return Event{}, err
	}
	a.Status = models.StatusConfirmed
	return l.commit(a, actor, now, ActionConfirm, models.LogConfirmed, "Appointment confirmed"), nil
}

// Cancel requires at least the cancellation window of notice.
func (l *Lifecycle) Cancel(a *models.Appointment, actor Actor, req CancelRequest, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionCancel, models.StatusScheduled, models.StatusConfirmed); err != nil {
		return Event{}, err
	}
	if req.RefundAmount.IsNegative() {
		return Event{}, Errorf(ErrInvalidRequest, "refund amount cannot be negative")
	}
	if err := l.requireNotice(a, ActionCancel, now); err != nil {
		return Event{}, err
	}

	refund := models.RefundNotApplicable
	if req.RefundAmount.IsPositive() {
		refund = models.RefundPending
	}
	cancelledAt := now
	a.Status = models.StatusCancelled
	a.Cancellation = models.CancellationInfo{
		Reason:       req.Reason,
		CancelledBy:  actor.ID,
		CancelledAt:  &cancelledAt,
		RefundAmount: req.RefundAmount,
		RefundStatus: refund,
	}
	content := "Appointment cancelled"
	if req.Reason != "" {
		content += ": " + req.Reason
	}
	return l.commit(a, actor, now, ActionCancel, models.LogCancelled, content), nil
}

// Reschedule moves the appointment after checking notice, the new range and
// conflicts against sameDay, the doctor's appointments on the new date.
func (l *Lifecycle) Reschedule(a *models.Appointment, actor Actor, req RescheduleRequest, sameDay []models.Appointment, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionReschedule, models.StatusScheduled, models.StatusConfirmed); err != nil {
		return Event{}, err
	}
	if err := l.requireNotice(a, ActionReschedule, now); err != nil {
		return Event{}, err
	}
	if req.Date.IsZero() {
		return Event{}, Errorf(ErrInvalidRequest, "new date is required")
	}
	r, err := ParseRange(req.StartTime, req.EndTime)
	if err != nil {
		return Event{}, err
	}
	if err := CheckDuration(r.Duration()); err != nil {
		return Event{}, err
	}
	newStart, err := At(req.Date, ToHHMM(r.Start), a.Timezone)
	if err != nil {
		return Event{}, err
	}
	if !newStart.After(now) {
		return Event{}, Errorf(ErrPastDate, "new time %s %s is in the past", req.Date.Format(time.DateOnly), ToHHMM(r.Start))
	}
	existing, err := FindConflict(sameDay, Candidate{DoctorID: a.DoctorID, Date: req.Date, Range: r, ExcludeID: a.ID})
	if err != nil {
		return Event{}, err
	}
	if existing != nil {
		return Event{}, ConflictError(existing)
	}

	prevDate := a.Date
	rescheduledAt := now
	a.Reschedule = models.RescheduleInfo{
		Reason:            req.Reason,
		RescheduledBy:     actor.ID,
		RescheduledAt:     &rescheduledAt,
		PreviousDate:      &prevDate,
		PreviousStartTime: a.StartTime,
		PreviousEndTime:   a.EndTime,
	}
	a.Date = DateOnly(req.Date)
	a.StartTime = ToHHMM(r.Start)
	a.EndTime = ToHHMM(r.End)
	a.Duration = r.Duration()
	a.Status = models.StatusRescheduled

	content := fmt.Sprintf("Rescheduled from %s %s-%s to %s %s-%s",
		prevDate.Format(time.DateOnly), a.Reschedule.PreviousStartTime, a.Reschedule.PreviousEndTime,
		a.Date.Format(time.DateOnly), a.StartTime, a.EndTime)
	return l.commit(a, actor, now, ActionReschedule, models.LogRescheduled, content), nil
}

// CheckIn is only possible for a confirmed appointment on its own calendar day.
func (l *Lifecycle) CheckIn(a *models.Appointment, actor Actor, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionCheckIn, models.StatusConfirmed); err != nil {
		return Event{}, err
	}
	if !isAppointmentDay(a, now) {
		return Event{}, Errorf(ErrInvalidTransition, "check-in is only possible on %s", a.Date.Format(time.DateOnly)).
			With("appointmentDate", a.Date.Format(time.DateOnly))
	}
	checkedIn := now
	a.Status = models.StatusCheckedIn
	a.CheckIn.CheckedInAt = &checkedIn
	a.CheckIn.CheckedInBy = actor.ID
	return l.commit(a, actor, now, ActionCheckIn, models.LogCheckedIn, "Patient checked in"), nil
}

// Start begins treatment and records the waiting time since check-in.
func (l *Lifecycle) Start(a *models.Appointment, actor Actor, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionStart, models.StatusCheckedIn); err != nil {
		return Event{}, err
	}
	started := now
	a.Status = models.StatusInProgress
	a.CheckIn.ActualStartTime = &started
	if a.CheckIn.CheckedInAt != nil {
		wait := roundMinutes(now.Sub(*a.CheckIn.CheckedInAt))
		a.CheckIn.WaitingTime = &wait
	}
	return l.commit(a, actor, now, ActionStart, models.LogStarted, "Treatment started"), nil
}

// Complete ends treatment; total time is taken from the request or computed.
func (l *Lifecycle) Complete(a *models.Appointment, actor Actor, req CompleteRequest, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionComplete, models.StatusInProgress); err != nil {
		return Event{}, err
	}
	var total *int
	switch {
	case req.TotalMinutes != nil:
		if *req.TotalMinutes < 0 {
			return Event{}, Errorf(ErrInvalidRequest, "total time cannot be negative")
		}
		v := *req.TotalMinutes
		total = &v
	case a.CheckIn.ActualStartTime != nil:
		v := roundMinutes(now.Sub(*a.CheckIn.ActualStartTime))
		total = &v
	}
	ended := now
	a.Status = models.StatusCompleted
	a.CheckIn.ActualEndTime = &ended
	a.CheckIn.TotalTime = total
	return l.commit(a, actor, now, ActionComplete, models.LogCompleted, "Appointment completed"), nil
}

// NoShow is terminal and only reachable from scheduled or confirmed.
func (l *Lifecycle) NoShow(a *models.Appointment, actor Actor, req NoShowRequest, now time.Time) (Event, error) {
	if err := requireStatus(a, ActionNoShow, models.StatusScheduled, models.StatusConfirmed); err != nil {
		return Event{}, err
	}
	a.Status = models.StatusNoShow
	content := "Patient did not attend"
	if req.Reason != "" {
		content += ": " + req.Reason
	}
	return l.commit(a, actor, now, ActionNoShow, models.LogNoShow, content), nil
}

// AddNote appends to the notes in any status.
func (l *Lifecycle) AddNote(a *models.Appointment, actor Actor, req NoteRequest, now time.Time) (Event, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Event{}, Errorf(ErrInvalidRequest, "note text is required")
	}
	if a.Notes == "" {
		a.Notes = text
	} else {
		a.Notes += "\n" + text
	}
	return l.commit(a, actor, now, ActionNote, models.LogNote, text), nil
}

func (l *Lifecycle) requireNotice(a *models.Appointment, action Action, now time.Time) error {
	hours, err := HoursUntilStart(a, now)
	if err != nil {
		return err
	}
	required := l.window().Hours()
	if hours < required {
		return Errorf(ErrInvalidTransition, "%s requires at least %.0f hours notice, %.1f hours left", action, required, hours).
			With("hoursUntilStart", math.Round(hours*10)/10).
			With("requiredHours", required)
	}
	return nil
}

func (l *Lifecycle) commit(a *models.Appointment, actor Actor, now time.Time, action Action, logType models.LogType, content string) Event {
	a.Logs = append(a.Logs, newLog(a, logType, content, actor.ID, now))
	a.LastModifiedBy = actor.ID
	a.Version++
	return newEvent(a, action, actor.ID, now)
}

func requireStatus(a *models.Appointment, action Action, allowed ...models.AppointmentStatus) error {
	for _, s := range allowed {
		if a.Status == s {
			return nil
		}
	}
	return Errorf(ErrInvalidTransition, "cannot %s an appointment in status %s", action, a.Status).
		With("status", string(a.Status)).
		With("action", string(action))
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
