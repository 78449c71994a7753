package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request with status and latency.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := logger.Info()
		switch {
		case status >= 500:
			evt = logger.Error()
		case status >= 400:
			evt = logger.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		if actor, ok := ActorFromContext(c); ok {
			evt = evt.Str("user_id", actor.ID).Str("role", string(actor.Role))
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Msg("request")
	}
}
