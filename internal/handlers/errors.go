package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/utils"
)

// errorResponder turns service errors into the standard response envelope.
type errorResponder struct {
	logger zerolog.Logger
	// exposeInternal includes infrastructure error text in 500 responses.
	exposeInternal bool
}

func statusForKind(k scheduling.Kind) int {
	switch k {
	case scheduling.KindValidation:
		return http.StatusBadRequest
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindConflict:
		return http.StatusConflict
	case scheduling.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func (r errorResponder) respond(c *gin.Context, err error) {
	if se, ok := scheduling.AsError(err); ok {
		utils.ErrorWithDetails(c, statusForKind(se.Kind), string(se.Code), se.Message, se.Details)
		return
	}
	r.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	msg := "Internal server error"
	if r.exposeInternal {
		msg = err.Error()
	}
	utils.InternalServerError(c, msg)
}

// actor extracts the caller or writes a 401.
func actor(c *gin.Context) (scheduling.Actor, bool) {
	a, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
	}
	return a, ok
}
