package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/config"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
)

type tenantCheckerStub struct {
	allowed   string
	indicator string
}

func (s *tenantCheckerStub) Check(_ context.Context, _ models.Identity, indicator string) error {
	s.indicator = indicator
	if indicator == "" {
		return appErrors.Clone(appErrors.ErrMissingTenantContext, "")
	}
	if indicator != s.allowed {
		return appErrors.Clone(appErrors.ErrTenantMismatch, "")
	}
	return nil
}

func TestTenantIndicatorFromHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Org", " acme ")

	assert.Equal(t, "acme", TenantIndicator(c, config.TenantConfig{Source: config.TenantSourceHeader, Header: "X-Org"}))
	assert.Equal(t, "", TenantIndicator(c, config.TenantConfig{Source: config.TenantSourceHeader}))

	c.Request.Header.Set("X-Tenant-ID", "acme")
	assert.Equal(t, "acme", TenantIndicator(c, config.TenantConfig{}))
}

func TestSubdomainOf(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"acme.leads.example.com", "acme"},
		{"ACME.leads.example.com:8443", "acme"},
		{"eu.acme.leads.example.com", "eu"},
		{"acme.leads.example.com.", "acme"},
		{"leads.example.com", ""},
		{"acme.other.example.com", ""},
		{"evilleads.example.com", ""},
		{"localhost:8080", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subdomainOf(tt.host, "leads.example.com"), tt.host)
	}
	assert.Equal(t, "", subdomainOf("acme.leads.example.com", ""))
}

func TestTenantMiddleware(t *testing.T) {
	cfg := config.TenantConfig{Source: config.TenantSourceSubdomain, BaseDomain: "leads.example.com"}

	tests := []struct {
		name       string
		host       string
		principal  *models.Principal
		wantStatus int
		wantCode   string
	}{
		{"matching tenant", "acme.leads.example.com", memberPrincipal(models.RoleUser), http.StatusNoContent, ""},
		{"other tenant", "globex.leads.example.com", memberPrincipal(models.RoleUser), http.StatusForbidden, appErrors.ErrTenantMismatch.Code},
		{"no subdomain", "leads.example.com", memberPrincipal(models.RoleUser), http.StatusForbidden, appErrors.ErrMissingTenantContext.Code},
		{"no principal", "acme.leads.example.com", nil, http.StatusUnauthorized, appErrors.ErrUnauthorized.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			guard := &tenantCheckerStub{allowed: "acme"}
			router := gin.New()
			router.GET("/", func(c *gin.Context) {
				if tt.principal != nil {
					c.Set(ContextPrincipalKey, tt.principal)
				}
			}, Tenant(guard, cfg), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, w).Error.Code)
			}
		})
	}
}
