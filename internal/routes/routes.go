package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic-booking-server/internal/handlers"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/utils"
)

// Deps carries everything the routes need.
type Deps struct {
	JWTSecret    string
	Appointments *handlers.AppointmentHandler
	Directory    *handlers.DirectoryHandler
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Deps) {
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(deps.JWTSecret))
	{
		staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.GET("", deps.Directory.GetDoctors)
			doctorRoutes.GET("/:id/availability", deps.Directory.GetAvailability)
			doctorRoutes.PUT("/:id/schedule", staffOnly, deps.Directory.SetDoctorSchedule)
			doctorRoutes.POST("/:id/exceptions", staffOnly, deps.Directory.AddScheduleException)
		}

		private.PUT("/clinics/:id/hours", staffOnly, deps.Directory.SetClinicHours)

		// Authorization beyond authentication happens in the booking service.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", deps.Appointments.CreateAppointment)
			appointmentRoutes.GET("", deps.Appointments.GetAppointmentsForUser)
			appointmentRoutes.GET("/:id", deps.Appointments.GetAppointmentByID)
			// confirm, cancel, reschedule, check-in, start, complete, no-show, notes
			appointmentRoutes.POST("/:id/:action", deps.Appointments.PerformAction)
		}
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.GET("/health", func(c *gin.Context) {
		utils.Success(c, "Service healthy", gin.H{"state": "UP"})
	})
}
