package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
)

// TenantResolver maps a tenant indicator to an organization id.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, indicator string) (string, bool, error)
}

// TenantGuard binds an identity to the tenant a request claims to act in.
type TenantGuard struct {
	resolver TenantResolver
	logger   *zap.Logger
}

// NewTenantGuard constructs a TenantGuard.
func NewTenantGuard(resolver TenantResolver, logger *zap.Logger) *TenantGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantGuard{resolver: resolver, logger: logger}
}

// Check applies the tenant rules in order and returns nil when id may act
// under indicator. An empty indicator means the request carried none.
func (g *TenantGuard) Check(ctx context.Context, id models.Identity, indicator string) error {
	indicator = strings.TrimSpace(indicator)

	switch identity := id.(type) {
	case *models.PlatformIdentity:
		if indicator != "" {
			return appErrors.Clone(appErrors.ErrUnexpectedTenantContext, "")
		}
		return nil
	case *models.TenantIdentity:
		if indicator == "" {
			return appErrors.Clone(appErrors.ErrMissingTenantContext, "")
		}
		orgID, found, err := g.resolver.ResolveTenant(ctx, indicator)
		if err != nil {
			g.logger.Warn("tenant resolution failed", zap.String("tenant", indicator), zap.Error(err))
			return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "tenant directory unavailable")
		}
		if !found {
			return appErrors.Clone(appErrors.ErrUnknownTenant, "")
		}
		if orgID != identity.OrganizationID {
			return appErrors.Clone(appErrors.ErrTenantMismatch, "")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
}
