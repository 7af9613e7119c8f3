package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/settleflow/backend/internal/interfaces/http/dto"
)

// Context keys set by the tenant middleware
const (
	// TenantIDKey is the gin context key carrying the validated tenant ID
	TenantIDKey = "tenant_id"
	// ActorIDKey is the gin context key carrying the acting user ID
	ActorIDKey = "actor_id"
)

var tenantUUIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Tenant extracts and validates the X-Tenant-ID header. Every request to a
// tenant-scoped route must carry one; requests without it are rejected
// before any handler runs.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "X-Tenant-ID header is required"))
			return
		}
		if !tenantUUIDRegex.MatchString(tenantID) {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "X-Tenant-ID must be a valid UUID"))
			return
		}
		c.Set(TenantIDKey, tenantID)

		// The actor header is optional; when present it is stamped onto
		// domain events for the audit trail.
		if actorID := c.GetHeader("X-Actor-ID"); actorID != "" {
			if !tenantUUIDRegex.MatchString(actorID) {
				c.AbortWithStatusJSON(http.StatusBadRequest,
					dto.NewErrorResponse(dto.ErrCodeBadRequest, "X-Actor-ID must be a valid UUID"))
				return
			}
			c.Set(ActorIDKey, actorID)
		}

		c.Next()
	}
}

// GetTenantID retrieves the validated tenant ID from the gin context
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}

// GetActorID retrieves the acting user ID from the gin context, empty when absent
func GetActorID(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}
