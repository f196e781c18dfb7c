package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/permission"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
	"github.com/noah-isme/ocms-api/pkg/response"
)

// RequireCapability lets the request through only when the caller's role
// grants capability. Ownership checks stay in the services.
func RequireCapability(capability permission.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !permission.Allows(claims.Role, capability) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
