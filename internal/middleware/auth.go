package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-booking-server/internal/models"
	"clinic-booking-server/internal/scheduling"
	"clinic-booking-server/internal/utils"
)

const actorKey = "actor"

// AuthMiddleware verifies the bearer token and stores the caller as a
// scheduling.Actor for the handlers below it.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			utils.Unauthorized(c, "Bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(strings.TrimSpace(token), jwtSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}
		if !claims.Role.Valid() {
			utils.Unauthorized(c, "Token carries an unknown role")
			c.Abort()
			return
		}

		c.Set(actorKey, scheduling.Actor{ID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// RequireRoles lets the request through only for the given roles.
// Mount it after AuthMiddleware.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			utils.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}
		if !slices.Contains(roles, actor.Role) {
			utils.Forbidden(c, "Only "+joinRoles(roles)+" may do this")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the caller stored by AuthMiddleware.
func ActorFromContext(c *gin.Context) (scheduling.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return scheduling.Actor{}, false
	}
	actor, ok := v.(scheduling.Actor)
	return actor, ok && actor.ID != ""
}

func joinRoles(roles []models.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
