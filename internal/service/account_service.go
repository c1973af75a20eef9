package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/repository"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/middleware/requestid"
)

// AccountDirectory is a UserDirectory that can also store password hashes.
type AccountDirectory interface {
	UserDirectory
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// AccountService implements self-service account changes.
type AccountService struct {
	users       AccountDirectory
	credentials *CredentialService
	authority   *SessionAuthority
	audit       AuditSink
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(users AccountDirectory, credentials *CredentialService, authority *SessionAuthority, audit AuditSink, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{users: users, credentials: credentials, authority: authority, audit: audit, validator: validate, logger: logger}
}

// ChangePassword replaces the caller's password and ends every other session.
// It returns how many sessions were ended.
func (s *AccountService) ChangePassword(ctx context.Context, principal *models.Principal, req models.ChangePasswordRequest, meta RequestMeta) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}
	if req.OldPassword == req.NewPassword {
		return 0, appErrors.Clone(appErrors.ErrValidation, "new password must differ from the current one")
	}

	userID := principal.Identity.Subject().UserID
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, appErrors.Clone(appErrors.ErrSessionRevoked, "")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "user directory unavailable")
	}

	if _, err := s.credentials.VerifyUser(ctx, user, req.OldPassword); err != nil {
		if errors.Is(err, appErrors.ErrInvalidCredentials) {
			return 0, appErrors.Clone(appErrors.ErrForbidden, "current password is incorrect")
		}
		return 0, err
	}

	hash, err := s.credentials.Hash(req.NewPassword)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, time.Now().UTC()); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	// The new password is already stored; a store failure here is still
	// reported so the caller knows other sessions may be alive.
	revokedCount, revokeErr := s.authority.LogoutOthers(ctx, principal)
	if revokeErr != nil {
		logger.WithRequest(ctx, s.logger).Warn("failed to revoke sessions after password change", zap.String("user_id", userID), zap.Error(revokeErr))
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:         &userID,
			OrganizationID: organizationPtr(principal.Identity),
			Action:         models.AuditActionPasswordChange,
			Resource:       "auth",
			ResourceID:     &userID,
			NewValues:      []byte(`{"status":"changed"}`),
			IPAddress:      meta.IP,
			UserAgent:      meta.UserAgent,
			RequestID:      requestid.FromContext(ctx),
		}); err != nil {
			s.logger.Warn("failed to record password change audit log", zap.Error(err))
		}
	}

	return revokedCount, revokeErr
}
