package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/services"
	"clinic-booking-server/internal/utils"
)

// DirectoryHandler serves doctors, availability and schedule maintenance.
type DirectoryHandler struct {
	errorResponder
	Directory *services.DirectoryService
	Bookings  *services.BookingService
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(directory *services.DirectoryService, bookings *services.BookingService, logger zerolog.Logger, exposeInternal bool) *DirectoryHandler {
	return &DirectoryHandler{
		errorResponder: errorResponder{logger: logger, exposeInternal: exposeInternal},
		Directory:      directory,
		Bookings:       bookings,
	}
}

// GetDoctors lists doctors, optionally narrowed with ?specialty=.
func (h *DirectoryHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Directory.ListDoctors(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		h.respond(c, err)
		return
	}

	sanitizedDoctors := make([]models.UserSanitized, len(doctors))
	for i, doctor := range doctors {
		sanitizedDoctors[i] = doctor.Sanitize()
	}
	utils.Success(c, "Doctors fetched successfully", sanitizedDoctors)
}

// AvailabilityQuery holds the query string of the availability endpoint.
type AvailabilityQuery struct {
	ClinicID string `form:"clinicId" validate:"required"`
	Date     string `form:"date" validate:"required,datetime=2006-01-02"`
	Duration int    `form:"duration" validate:"omitempty,min=15,max=480"`
}

// GetAvailability returns the free slots of a doctor at a clinic on a date.
func (h *DirectoryHandler) GetAvailability(c *gin.Context) {
	var q AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.BadRequest(c, "Invalid query: "+err.Error())
		return
	}
	if err := utils.Validate(&q); err != nil {
		utils.BadRequest(c, "Validation failed: "+utils.FormatValidationError(err))
		return
	}
	date, _ := time.Parse(time.DateOnly, q.Date)

	avail, err := h.Bookings.Availability(c.Request.Context(), services.AvailabilityQuery{
		DoctorID: c.Param("id"),
		ClinicID: q.ClinicID,
		Date:     date,
		Duration: q.Duration,
	})
	if err != nil {
		h.respond(c, err)
		return
	}
	utils.Success(c, "Availability fetched successfully", avail)
}

// ScheduleDayRequest is one weekday of a doctor's template.
type ScheduleDayRequest struct {
	Weekday      int    `json:"weekday" validate:"min=0,max=6"`
	IsWorking    bool   `json:"isWorking"`
	StartTime    string `json:"startTime" validate:"omitempty,hhmm"`
	EndTime      string `json:"endTime" validate:"omitempty,hhmm"`
	BreakStart   string `json:"breakStart" validate:"omitempty,hhmm"`
	BreakEnd     string `json:"breakEnd" validate:"omitempty,hhmm"`
	SlotDuration int    `json:"slotDuration" validate:"omitempty,min=15,max=480"`
}

// SetScheduleRequest replaces the given weekdays of a doctor's template.
type SetScheduleRequest struct {
	Days []ScheduleDayRequest `json:"days" validate:"required,dive"`
}

// SetDoctorSchedule handles PUT /doctors/:id/schedule.
func (h *DirectoryHandler) SetDoctorSchedule(c *gin.Context) {
	var req SetScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	doctorID := c.Param("id")
	days := make([]models.DoctorSchedule, len(req.Days))
	for i, d := range req.Days {
		days[i] = models.DoctorSchedule{
			DoctorID:     doctorID,
			Weekday:      d.Weekday,
			IsWorking:    d.IsWorking,
			StartTime:    d.StartTime,
			EndTime:      d.EndTime,
			BreakStart:   d.BreakStart,
			BreakEnd:     d.BreakEnd,
			SlotDuration: d.SlotDuration,
		}
	}
	if err := h.Directory.SetDoctorSchedule(c.Request.Context(), doctorID, days); err != nil {
		h.respond(c, err)
		return
	}
	utils.Success(c, "Schedule updated successfully", days)
}

// ScheduleExceptionRequest overrides a doctor's template on one date.
type ScheduleExceptionRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Kind      string `json:"kind" validate:"required,oneof=unavailable custom_hours"`
	StartTime string `json:"startTime" validate:"required_if=Kind custom_hours,omitempty,hhmm"`
	EndTime   string `json:"endTime" validate:"required_if=Kind custom_hours,omitempty,hhmm"`
	Reason    string `json:"reason" validate:"max=255"`
}

// AddScheduleException handles POST /doctors/:id/exceptions.
func (h *DirectoryHandler) AddScheduleException(c *gin.Context) {
	var req ScheduleExceptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	ex := &models.DoctorScheduleException{
		DoctorID:  c.Param("id"),
		Date:      date,
		Kind:      models.ExceptionKind(req.Kind),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}
	if err := h.Directory.AddScheduleException(c.Request.Context(), ex); err != nil {
		h.respond(c, err)
		return
	}
	utils.Created(c, "Schedule exception added successfully", ex)
}

// ClinicHoursRequest is one weekday of a clinic's operating hours.
type ClinicHoursRequest struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	IsOpen    bool   `json:"isOpen"`
	OpenTime  string `json:"openTime" validate:"omitempty,hhmm"`
	CloseTime string `json:"closeTime" validate:"omitempty,hhmm"`
}

// SetClinicHoursRequest replaces the given weekdays of a clinic's hours.
type SetClinicHoursRequest struct {
	Hours []ClinicHoursRequest `json:"hours" validate:"required,dive"`
}

// SetClinicHours handles PUT /clinics/:id/hours.
func (h *DirectoryHandler) SetClinicHours(c *gin.Context) {
	var req SetClinicHoursRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	clinicID := c.Param("id")
	hours := make([]models.ClinicHours, len(req.Hours))
	for i, d := range req.Hours {
		hours[i] = models.ClinicHours{
			ClinicID:  clinicID,
			Weekday:   d.Weekday,
			IsOpen:    d.IsOpen,
			OpenTime:  d.OpenTime,
			CloseTime: d.CloseTime,
		}
	}
	if err := h.Directory.SetClinicHours(c.Request.Context(), clinicID, hours); err != nil {
		h.respond(c, err)
		return
	}
	utils.Success(c, "Clinic hours updated successfully", hours)
}
