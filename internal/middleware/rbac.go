package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

// RequireRoles admits only principals holding one of roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[principal.Identity.Subject().Role]; !ok {
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
