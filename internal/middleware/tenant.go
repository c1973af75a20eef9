package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/config"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/response"
)

// TenantChecker binds an identity to a request's tenant indicator.
type TenantChecker interface {
	Check(ctx context.Context, id models.Identity, indicator string) error
}

// TenantIndicator reads the tenant the request claims to act in, from the
// configured header or from the leftmost Host label under the base domain.
func TenantIndicator(c *gin.Context, cfg config.TenantConfig) string {
	if cfg.Source == config.TenantSourceSubdomain {
		return subdomainOf(c.Request.Host, cfg.BaseDomain)
	}
	header := cfg.Header
	if header == "" {
		header = "X-Tenant-ID"
	}
	return strings.TrimSpace(c.GetHeader(header))
}

func subdomainOf(host, baseDomain string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	baseDomain = strings.ToLower(strings.Trim(baseDomain, "."))
	if baseDomain == "" || host == baseDomain {
		return ""
	}
	prefix, found := strings.CutSuffix(host, "."+baseDomain)
	if !found || prefix == "" {
		return ""
	}
	labels := strings.Split(prefix, ".")
	return labels[0]
}

// Tenant rejects requests whose tenant indicator does not match the
// principal's organization. It must run after JWT.
func Tenant(guard TenantChecker, cfg config.TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		indicator := TenantIndicator(c, cfg)
		if err := guard.Check(c.Request.Context(), principal.Identity, indicator); err != nil {
			logger.AddFields(c, zap.String("tenant_error", appErrors.Code(err)), zap.String("tenant", indicator))
			response.Abort(c, err)
			return
		}
		c.Next()
	}
}
