package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-booking-server/internal/handlers"
	"clinic-booking-server/internal/metrics"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/services"
	"clinic-booking-server/internal/utils"
)

const testSecret = "test-secret"

var fixedNow = time.Date(2025, 6, 7, 8, 0, 0, 0, time.UTC)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details map[string]any  `json:"details"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	tokens map[models.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repository.NewMemoryStore()
	store.PutClinic(models.Clinic{BaseModel: models.BaseModel{ID: "clinic-1"}, Name: "Main Street", Timezone: "UTC"})
	store.PutUser(models.User{BaseModel: models.BaseModel{ID: "dr-1"}, Email: "dr@example.com", Role: models.RoleDoctor, Specialty: "cardiology"})
	store.PutUser(models.User{BaseModel: models.BaseModel{ID: "pat-1"}, Email: "p1@example.com", Role: models.RolePatient})
	store.PutUser(models.User{BaseModel: models.BaseModel{ID: "staff-1"}, Email: "desk@example.com", Role: models.RoleStaff})

	directory := services.NewDirectoryService(store)
	require.NoError(t, directory.SetClinicHours(ctx, "clinic-1", []models.ClinicHours{
		{Weekday: 2, IsOpen: true, OpenTime: "08:00", CloseTime: "17:00"},
	}))
	require.NoError(t, directory.SetDoctorSchedule(ctx, "dr-1", []models.DoctorSchedule{
		{Weekday: 2, IsWorking: true, StartTime: "09:00", EndTime: "12:00", SlotDuration: 30},
	}))

	registry := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(registry)
	now := func() time.Time { return fixedNow }
	bookings := services.NewBookingService(store, store, nil, m, zerolog.Nop(), services.Options{Now: now})

	appointments := handlers.NewAppointmentHandler(bookings, 24*time.Hour, zerolog.Nop(), true)
	appointments.Now = now

	router := gin.New()
	SetupRoutes(router, Deps{
		JWTSecret:    testSecret,
		Appointments: appointments,
		Directory:    handlers.NewDirectoryHandler(directory, bookings, zerolog.Nop(), true),
		Gatherer:     registry,
	})

	s := &testServer{t: t, router: router, tokens: map[models.Role]string{}}
	for role, id := range map[models.Role]string{models.RoleDoctor: "dr-1", models.RolePatient: "pat-1", models.RoleStaff: "staff-1"} {
		token, err := utils.GenerateAccessToken(id, role, testSecret, time.Hour)
		require.NoError(t, err)
		s.tokens[role] = token
	}
	return s
}

func (s *testServer) do(method, path string, role models.Role, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := s.tokens[role]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) book(role models.Role, start, end string) (*httptest.ResponseRecorder, envelope) {
	return s.do(http.MethodPost, "/api/v1/appointments", role, map[string]any{
		"patientId": "pat-1",
		"doctorId":  "dr-1",
		"clinicId":  "clinic-1",
		"date":      "2025-06-10",
		"startTime": start,
		"endTime":   end,
		"type":      "consultation",
	})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookAndProjectByRole(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodPost, "/api/v1/appointments", models.RolePatient, map[string]any{
		"doctorId": "dr-1", "clinicId": "clinic-1", "date": "2025-06-10", "startTime": "10:00", "endTime": "10:30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booked := decode[map[string]any](t, env.Data)
	assert.Equal(t, "pat-1", booked["patientId"])
	assert.Equal(t, "scheduled", booked["status"])
	assert.Equal(t, "2025-06-10", booked["date"])
	assert.NotContains(t, booked, "cancellationRisk")
	assert.NotContains(t, booked, "logs")

	id := booked["id"].(string)
	w, env = s.do(http.MethodGet, "/api/v1/appointments/"+id, models.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	staffView := decode[map[string]any](t, env.Data)
	assert.Equal(t, "low", staffView["cancellationRisk"])
	assert.Len(t, staffView["logs"], 1)
	perms := staffView["permissions"].(map[string]any)
	assert.Equal(t, true, perms["canCancel"])
}

func TestBookingRejections(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.book(models.RoleStaff, "10:00", "10:30")
	require.Equal(t, http.StatusCreated, w.Code)
	_, first := s.book(models.RoleStaff, "10:30", "11:00")
	firstID := decode[map[string]any](t, first.Data)["id"]

	w, env := s.book(models.RoleStaff, "10:45", "11:15")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SchedulingConflict", env.Code)
	assert.Equal(t, firstID, env.Details["existingAppointmentId"])

	w, env = s.book(models.RoleStaff, "9am", "10:00")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "HH:MM")
	assert.Equal(t, "InvalidRequest", env.Code)

	w, env = s.book(models.RoleStaff, "12:00", "12:30")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DoctorUnavailable", env.Code)
	assert.Contains(t, env.Details, "doctorSchedule")

	w, env = s.do(http.MethodPost, "/api/v1/appointments", models.RolePatient, map[string]any{
		"patientId": "someone-else", "doctorId": "dr-1", "clinicId": "clinic-1", "date": "2025-06-10", "startTime": "11:00", "endTime": "11:30",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AccessDenied", env.Code)
}

func TestLifecycleActions(t *testing.T) {
	s := newTestServer(t)
	_, env := s.book(models.RoleStaff, "10:00", "10:30")
	id := decode[map[string]any](t, env.Data)["id"].(string)

	w, env := s.do(http.MethodPost, "/api/v1/appointments/"+id+"/confirm", models.RolePatient, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", decode[map[string]any](t, env.Data)["status"])

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+id+"/no-show", models.RolePatient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AccessDenied", env.Code)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+id+"/dance", models.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", env.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/appointments/"+id+"/notes", models.RoleDoctor, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+id+"/check-in", models.RoleStaff, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "InvalidTransition", env.Code)

	w, env = s.do(http.MethodPost, "/api/v1/appointments/"+id+"/cancel", models.RoleStaff, map[string]any{
		"reason": "clinic closure", "refundAmount": "10.00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[map[string]any](t, env.Data)
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.Equal(t, "pending", cancelled["cancellation"].(map[string]any)["refundStatus"])

	w, env = s.do(http.MethodGet, "/api/v1/appointments/APT-missing", models.RoleStaff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "AppointmentNotFound", env.Code)
}

func TestScheduleMaintenanceAndAvailability(t *testing.T) {
	s := newTestServer(t)
	schedule := map[string]any{"days": []map[string]any{
		{"weekday": 2, "isWorking": true, "startTime": "13:00", "endTime": "15:00", "slotDuration": 60},
	}}

	w, _ := s.do(http.MethodPut, "/api/v1/doctors/dr-1/schedule", models.RolePatient, schedule)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPut, "/api/v1/doctors/dr-1/schedule", models.RoleStaff, schedule)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(http.MethodGet, "/api/v1/doctors/dr-1/availability?clinicId=clinic-1&date=2025-06-10", models.RolePatient, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	avail := decode[struct {
		Slots []struct{ Start, End string } `json:"slots"`
	}](t, env.Data)
	require.Len(t, avail.Slots, 2)
	assert.Equal(t, "13:00", avail.Slots[0].Start)
	assert.Equal(t, "15:00", avail.Slots[1].End)

	w, _ = s.do(http.MethodGet, "/api/v1/doctors/dr-1/availability?clinicId=clinic-1", models.RolePatient, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/doctors/dr-1/exceptions", models.RoleStaff, map[string]any{
		"date": "2025-06-10", "kind": "unavailable", "reason": "training",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	_, env = s.do(http.MethodGet, "/api/v1/doctors/dr-1/availability?clinicId=clinic-1&date=2025-06-10", models.RolePatient, nil)
	assert.Equal(t, "doctor not working", decode[map[string]any](t, env.Data)["reason"])

	w, env = s.do(http.MethodGet, "/api/v1/doctors?specialty=cardiology", models.RolePatient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)
}

func TestListFilters(t *testing.T) {
	s := newTestServer(t)
	s.book(models.RoleStaff, "10:00", "10:30")

	w, env := s.do(http.MethodGet, "/api/v1/appointments?from=2025-06-01&to=2025-06-30", models.RolePatient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments?from=June", models.RolePatient, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.book(models.RoleStaff, "10:00", "10:30")

	w, env := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, "UP", decode[map[string]string](t, env.Data)["state"])

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `clinic_booking_bookings_total{code="",result="ok"} 1`)
}
