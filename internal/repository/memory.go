package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
)

// MemoryStore keeps everything in process memory. It implements both
// AppointmentStore and Directory and backs the tests and the database-less
// demo mode. Reads hand out copies so callers can never mutate stored state.
type MemoryStore struct {
	mu           sync.RWMutex
	appointments map[string]*models.Appointment
	users        map[string]models.User
	clinics      map[string]models.Clinic
	clinicHours  map[string]map[int]models.ClinicHours    // clinic ID -> weekday -> hours
	schedules    map[string]map[int]models.DoctorSchedule // doctor ID -> weekday -> template
	exceptions   map[string][]models.DoctorScheduleException
}

var (
	_ AppointmentStore = (*MemoryStore)(nil)
	_ Directory        = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[string]*models.Appointment),
		users:        make(map[string]models.User),
		clinics:      make(map[string]models.Clinic),
		clinicHours:  make(map[string]map[int]models.ClinicHours),
		schedules:    make(map[string]map[int]models.DoctorSchedule),
		exceptions:   make(map[string][]models.DoctorScheduleException),
	}
}

// PutUser adds or replaces a user; an empty ID is filled in.
func (m *MemoryStore) PutUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	m.users[u.ID] = u
	return u
}

// PutClinic adds or replaces a clinic; an empty ID is filled in.
func (m *MemoryStore) PutClinic(c models.Clinic) models.Clinic {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.Hours = nil
	m.clinics[c.ID] = c
	return c
}

func (m *MemoryStore) Create(_ context.Context, a *models.Appointment) error {
	if err := scheduling.Validate(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.appointments[a.ID]; exists {
		return scheduling.Errorf(scheduling.ErrInvalidRequest, "appointment %s already exists", a.ID)
	}
	if err := m.checkConflictLocked(a); err != nil {
		return err
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.assignLogIDs(a)
	m.appointments[a.ID] = a.Clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, a *models.Appointment, prevVersion int, checkConflict bool) error {
	if err := scheduling.Validate(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.appointments[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != prevVersion {
		return scheduling.Errorf(scheduling.ErrConcurrentModification,
			"appointment %s was modified by someone else", a.ID).With("expectedVersion", prevVersion)
	}
	if checkConflict {
		if err := m.checkConflictLocked(a); err != nil {
			return err
		}
	}
	a.CreatedAt = stored.CreatedAt
	a.UpdatedAt = time.Now()
	m.assignLogIDs(a)
	m.appointments[a.ID] = a.Clone()
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *MemoryStore) ListByDoctorOnDate(_ context.Context, doctorID string, date time.Time) ([]models.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && scheduling.SameDay(a.Date, date) {
			out = append(out, *a.Clone())
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemoryStore) ListForUser(_ context.Context, f ListFilter) ([]models.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Appointment
	for _, a := range m.appointments {
		if !matches(a, f) {
			continue
		}
		c := a.Clone()
		c.Logs = nil
		out = append(out, *c)
	}
	sortAppointments(out)

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) ListDoctors(_ context.Context, specialty string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleDoctor && (specialty == "" || u.Specialty == specialty) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (m *MemoryStore) GetClinic(_ context.Context, id string) (*models.Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clinics[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetClinicHours(_ context.Context, clinicID string) ([]models.ClinicHours, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ClinicHours
	for _, h := range m.clinicHours[clinicID] {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (m *MemoryStore) UpsertClinicHours(_ context.Context, clinicID string, hours []models.ClinicHours) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	days, ok := m.clinicHours[clinicID]
	if !ok {
		days = make(map[int]models.ClinicHours)
		m.clinicHours[clinicID] = days
	}
	for _, h := range hours {
		h.ClinicID = clinicID
		if prev, exists := days[h.Weekday]; exists {
			h.ID = prev.ID
		} else if h.ID == "" {
			h.ID = uuid.New().String()
		}
		days[h.Weekday] = h
	}
	return nil
}

func (m *MemoryStore) GetDoctorSchedule(_ context.Context, doctorID string, date time.Time) ([]models.DoctorSchedule, []models.DoctorScheduleException, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var weekly []models.DoctorSchedule
	for _, s := range m.schedules[doctorID] {
		weekly = append(weekly, s)
	}
	sort.Slice(weekly, func(i, j int) bool { return weekly[i].Weekday < weekly[j].Weekday })

	var exceptions []models.DoctorScheduleException
	for _, ex := range m.exceptions[doctorID] {
		if scheduling.SameDay(ex.Date, date) {
			exceptions = append(exceptions, ex)
		}
	}
	return weekly, exceptions, nil
}

func (m *MemoryStore) UpsertDoctorSchedule(_ context.Context, doctorID string, days []models.DoctorSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	week, ok := m.schedules[doctorID]
	if !ok {
		week = make(map[int]models.DoctorSchedule)
		m.schedules[doctorID] = week
	}
	for _, d := range days {
		d.DoctorID = doctorID
		if prev, exists := week[d.Weekday]; exists {
			d.ID = prev.ID
		} else if d.ID == "" {
			d.ID = uuid.New().String()
		}
		week[d.Weekday] = d
	}
	return nil
}

func (m *MemoryStore) AddScheduleException(_ context.Context, ex *models.DoctorScheduleException) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	ex.Date = scheduling.DateOnly(ex.Date)
	m.exceptions[ex.DoctorID] = append(m.exceptions[ex.DoctorID], *ex)
	return nil
}

func (m *MemoryStore) checkConflictLocked(a *models.Appointment) error {
	var sameDay []models.Appointment
	for _, other := range m.appointments {
		if other.DoctorID == a.DoctorID {
			sameDay = append(sameDay, *other)
		}
	}
	r, err := scheduling.ParseRange(a.StartTime, a.EndTime)
	if err != nil {
		return err
	}
	existing, err := scheduling.FindConflict(sameDay, scheduling.Candidate{
		DoctorID: a.DoctorID, Date: a.Date, Range: r, ExcludeID: a.ID,
	})
	if err != nil {
		return err
	}
	if existing != nil {
		return scheduling.ConflictError(existing)
	}
	return nil
}

func (m *MemoryStore) assignLogIDs(a *models.Appointment) {
	for i := range a.Logs {
		if a.Logs[i].ID == "" {
			a.Logs[i].ID = uuid.New().String()
			a.Logs[i].AppointmentID = a.ID
		}
	}
}

func matches(a *models.Appointment, f ListFilter) bool {
	switch {
	case f.PatientID != "" && a.PatientID != f.PatientID:
		return false
	case f.DoctorID != "" && a.DoctorID != f.DoctorID:
		return false
	case f.ClinicID != "" && a.ClinicID != f.ClinicID:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case !f.From.IsZero() && a.Date.Before(scheduling.DateOnly(f.From)):
		return false
	}
	if !f.To.IsZero() {
		_, end := scheduling.DayBounds(f.To)
		if !a.Date.Before(end) {
			return false
		}
	}
	return true
}

func sortAppointments(list []models.Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].StartTime < list[j].StartTime
	})
}
