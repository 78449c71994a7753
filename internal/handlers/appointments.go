package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/repository"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/services"
	"clinic-booking-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	errorResponder
	Bookings *services.BookingService
	// Window is the cancellation notice used for the permission hints.
	Window time.Duration
	Now    func() time.Time
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(bookings *services.BookingService, window time.Duration, logger zerolog.Logger, exposeInternal bool) *AppointmentHandler {
	if window <= 0 {
		window = scheduling.DefaultCancellationWindow
	}
	return &AppointmentHandler{
		errorResponder: errorResponder{logger: logger, exposeInternal: exposeInternal},
		Bookings:       bookings,
		Window:         window,
		Now:            time.Now,
	}
}

// CreateAppointmentRequest represents the request body for booking an appointment.
// PatientID defaults to the caller when omitted.
type CreateAppointmentRequest struct {
	PatientID   string `json:"patientId"`
	DoctorID    string `json:"doctorId" validate:"required"`
	ClinicID    string `json:"clinicId" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"startTime" validate:"required,hhmm"`
	EndTime     string `json:"endTime" validate:"required,hhmm"`
	Type        string `json:"type" validate:"max=50"`
	Reason      string `json:"reason" validate:"max=500"`
	Notes       string `json:"notes"`
	IsEmergency bool   `json:"isEmergency"`
}

// CreateAppointment handles booking a new appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	if req.PatientID == "" && caller.Role == models.RolePatient {
		req.PatientID = caller.ID
	}

	a, err := h.Bookings.Book(c.Request.Context(), caller, services.BookingRequest{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		ClinicID:    req.ClinicID,
		Date:        date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Type:        req.Type,
		Reason:      req.Reason,
		Notes:       req.Notes,
		IsEmergency: req.IsEmergency,
	})
	if err != nil {
		h.respond(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", h.view(a, caller))
}

// GetAppointmentsForUser lists the caller's appointments. Staff may filter by
// patientId, doctorId and clinicId; everyone may filter by status and date range.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	filter, err := listFilterFromQuery(c)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	list, err := h.Bookings.List(c.Request.Context(), caller, filter)
	if err != nil {
		h.respond(c, err)
		return
	}
	views := make([]AppointmentView, len(list))
	for i := range list {
		views[i] = h.view(&list[i], caller)
	}
	utils.Success(c, "Appointments fetched successfully", views)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by the involved patient or doctor, and by staff.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	a, err := h.Bookings.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.respond(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", h.view(a, caller))
}

// CancelAppointmentRequest represents the request body for a cancellation.
type CancelAppointmentRequest struct {
	Reason       string          `json:"reason" validate:"max=500"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
}

// RescheduleAppointmentRequest represents the request body for rescheduling an appointment.
type RescheduleAppointmentRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
	Reason    string `json:"reason" validate:"max=500"`
}

// CompleteAppointmentRequest optionally overrides the measured treatment time.
type CompleteAppointmentRequest struct {
	TotalMinutes *int `json:"totalMinutes" validate:"omitempty,min=0"`
}

// NoShowRequest represents the request body for marking a no-show.
type NoShowRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// AddNoteRequest represents the request body for attaching a note.
type AddNoteRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// PerformAction applies the lifecycle action named in the path
// (confirm, cancel, reschedule, check-in, start, complete, no-show, notes).
func (h *AppointmentHandler) PerformAction(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	action, err := scheduling.ParseAction(c.Param("action"))
	if err != nil {
		h.respond(c, err)
		return
	}

	act := services.LifecycleAction{AppointmentID: c.Param("id"), Action: action, Actor: caller}
	switch action {
	case scheduling.ActionCancel:
		var req CancelAppointmentRequest
		if !bindOptional(c, &req) {
			return
		}
		act.Cancel = scheduling.CancelRequest{Reason: req.Reason, RefundAmount: req.RefundAmount}
	case scheduling.ActionReschedule:
		var req RescheduleAppointmentRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		date, _ := time.Parse(time.DateOnly, req.Date)
		act.Reschedule = scheduling.RescheduleRequest{Date: date, StartTime: req.StartTime, EndTime: req.EndTime, Reason: req.Reason}
	case scheduling.ActionComplete:
		var req CompleteAppointmentRequest
		if !bindOptional(c, &req) {
			return
		}
		act.Complete = scheduling.CompleteRequest{TotalMinutes: req.TotalMinutes}
	case scheduling.ActionNoShow:
		var req NoShowRequest
		if !bindOptional(c, &req) {
			return
		}
		act.NoShow = scheduling.NoShowRequest{Reason: req.Reason}
	case scheduling.ActionNote:
		var req AddNoteRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		act.Note = scheduling.NoteRequest{Text: req.Text}
	}

	a, err := h.Bookings.Act(c.Request.Context(), act)
	if err != nil {
		h.respond(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", h.view(a, caller))
}

func (h *AppointmentHandler) view(a *models.Appointment, caller scheduling.Actor) AppointmentView {
	return NewAppointmentView(a, caller.Role, h.Now(), h.Window)
}

// bindOptional is BindAndValidate for actions whose body may be omitted.
func bindOptional(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		if err := utils.Validate(obj); err != nil {
			utils.BadRequest(c, "Validation failed: "+utils.FormatValidationError(err))
			return false
		}
		return true
	}
	return utils.BindAndValidate(c, obj)
}

func listFilterFromQuery(c *gin.Context) (repository.ListFilter, error) {
	f := repository.ListFilter{
		PatientID: c.Query("patientId"),
		DoctorID:  c.Query("doctorId"),
		ClinicID:  c.Query("clinicId"),
		Status:    models.AppointmentStatus(c.Query("status")),
	}
	var err error
	if v := c.Query("from"); v != "" {
		if f.From, err = time.Parse(time.DateOnly, v); err != nil {
			return f, errors.New("from must be a date in YYYY-MM-DD format")
		}
	}
	if v := c.Query("to"); v != "" {
		if f.To, err = time.Parse(time.DateOnly, v); err != nil {
			return f, errors.New("to must be a date in YYYY-MM-DD format")
		}
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
	}
	if v := c.Query("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
	}
	return f, nil
}
