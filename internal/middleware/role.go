package middleware

import (
	"net/http"

	"coworking/internal/domain"
	"coworking/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "FORBIDDEN", "admin privileges required")
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
