package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the authenticated *models.Principal.
const ContextPrincipalKey = "principal"

// Authenticator turns an access token into the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.Principal, error)
}

// AccessToken returns the bearer token of the request, falling back to the
// named cookie. It returns an empty string when neither is present.
func AccessToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookieName != "" {
		if value, err := c.Cookie(cookieName); err == nil {
			return value
		}
	}
	return ""
}

// JWT protects routes by requiring a valid access token from the
// Authorization header or the access cookie.
func JWT(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c, cookieName)
		if token == "" {
			logger.AddFields(c, zap.String("auth_error", "missing_token"))
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.AddFields(c, zap.String("auth_error", appErrors.Code(err)))
			response.Abort(c, err)
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// OptionalJWT attaches the principal when a valid token is present but does not block.
func OptionalJWT(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}
		if principal, err := auth.Authenticate(c.Request.Context(), token); err == nil {
			setPrincipal(c, principal)
		}
		c.Next()
	}
}

func setPrincipal(c *gin.Context, principal *models.Principal) {
	c.Set(ContextPrincipalKey, principal)
	c.Request = c.Request.WithContext(models.WithPrincipal(c.Request.Context(), principal))
	logger.AddFields(c, zap.String("user_id", principal.Identity.Subject().UserID))
}

// PrincipalFromContext returns the principal set by JWT.
func PrincipalFromContext(c *gin.Context) (*models.Principal, bool) {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(*models.Principal)
	return principal, ok && principal != nil
}
