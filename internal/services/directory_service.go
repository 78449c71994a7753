package services

import (
	"context"
	"errors"
	"time"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
)

// DirectoryService maintains the schedule snapshots the booking engine reads:
// doctor weekly templates, date exceptions and clinic hours.
type DirectoryService struct {
	directory repository.Directory
}

func NewDirectoryService(directory repository.Directory) *DirectoryService {
	return &DirectoryService{directory: directory}
}

func (s *DirectoryService) ListDoctors(ctx context.Context, specialty string) ([]models.User, error) {
	return s.directory.ListDoctors(ctx, specialty)
}

// SetDoctorSchedule validates and stores weekday templates for a doctor.
func (s *DirectoryService) SetDoctorSchedule(ctx context.Context, doctorID string, days []models.DoctorSchedule) error {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return err
	}
	seen := make(map[int]bool, len(days))
	for i := range days {
		d := &days[i]
		if err := checkWeekday(d.Weekday, seen); err != nil {
			return err
		}
		if !d.IsWorking {
			continue
		}
		window, err := scheduling.ParseRange(d.StartTime, d.EndTime)
		if err != nil {
			return err
		}
		d.StartTime, d.EndTime = scheduling.ToHHMM(window.Start), scheduling.ToHHMM(window.End)
		if d.SlotDuration == 0 {
			d.SlotDuration = scheduling.DefaultSlotDuration
		}
		if err := scheduling.CheckDuration(d.SlotDuration); err != nil {
			return err
		}
		if d.BreakStart == "" && d.BreakEnd == "" {
			continue
		}
		brk, err := scheduling.ParseRange(d.BreakStart, d.BreakEnd)
		if err != nil {
			return err
		}
		if !window.Contains(brk) {
			return scheduling.Errorf(scheduling.ErrInvalidRange, "break %s must lie within working hours %s", brk, window).
				With("weekday", d.Weekday)
		}
		d.BreakStart, d.BreakEnd = scheduling.ToHHMM(brk.Start), scheduling.ToHHMM(brk.End)
	}
	return s.directory.UpsertDoctorSchedule(ctx, doctorID, days)
}

// AddScheduleException marks a doctor unavailable, or on custom hours, for one date.
func (s *DirectoryService) AddScheduleException(ctx context.Context, ex *models.DoctorScheduleException) error {
	if err := s.requireDoctor(ctx, ex.DoctorID); err != nil {
		return err
	}
	if ex.Date.IsZero() {
		return scheduling.Errorf(scheduling.ErrInvalidRequest, "date is required")
	}
	switch ex.Kind {
	case models.ExceptionUnavailable:
		ex.StartTime, ex.EndTime = "", ""
	case models.ExceptionCustomHours:
		r, err := scheduling.ParseRange(ex.StartTime, ex.EndTime)
		if err != nil {
			return err
		}
		ex.StartTime, ex.EndTime = scheduling.ToHHMM(r.Start), scheduling.ToHHMM(r.End)
	default:
		return scheduling.Errorf(scheduling.ErrInvalidRequest, "unknown exception kind %q", ex.Kind)
	}
	return s.directory.AddScheduleException(ctx, ex)
}

// SetClinicHours validates and stores weekday operating hours for a clinic.
func (s *DirectoryService) SetClinicHours(ctx context.Context, clinicID string, hours []models.ClinicHours) error {
	if _, err := s.directory.GetClinic(ctx, clinicID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return scheduling.Errorf(scheduling.ErrClinicNotFound, "clinic %s not found", clinicID)
		}
		return err
	}
	seen := make(map[int]bool, len(hours))
	for i := range hours {
		h := &hours[i]
		if err := checkWeekday(h.Weekday, seen); err != nil {
			return err
		}
		if !h.IsOpen {
			h.OpenTime, h.CloseTime = "", ""
			continue
		}
		r, err := scheduling.ParseRange(h.OpenTime, h.CloseTime)
		if err != nil {
			return err
		}
		h.OpenTime, h.CloseTime = scheduling.ToHHMM(r.Start), scheduling.ToHHMM(r.End)
	}
	return s.directory.UpsertClinicHours(ctx, clinicID, hours)
}

func (s *DirectoryService) requireDoctor(ctx context.Context, doctorID string) error {
	u, err := s.directory.GetUser(ctx, doctorID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && u.Role != models.RoleDoctor) {
		return scheduling.Errorf(scheduling.ErrDoctorNotFound, "doctor %s not found", doctorID)
	}
	return err
}

func checkWeekday(w int, seen map[int]bool) error {
	if w < int(time.Sunday) || w > int(time.Saturday) {
		return scheduling.Errorf(scheduling.ErrInvalidRequest, "weekday %d must be between 0 (Sunday) and 6", w)
	}
	if seen[w] {
		return scheduling.Errorf(scheduling.ErrInvalidRequest, "weekday %d listed twice", w)
	}
	seen[w] = true
	return nil
}
