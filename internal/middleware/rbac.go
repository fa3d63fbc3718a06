package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ecas/approval-api/internal/models"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/response"
)

// RequireRoles lets requests through only for the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "your role cannot access this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAuthority admits teachers, HODs and the principal.
func RequireAuthority() gin.HandlerFunc {
	return RequireRoles(models.RoleTeacher, models.RoleHOD, models.RolePrincipal)
}
