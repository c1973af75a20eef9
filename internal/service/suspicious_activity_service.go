package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/repository"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/middleware/requestid"
)

// Reasons reported by a suspicious-activity scan.
const (
	ReasonTooManySessions = "too many concurrent sessions"
	ReasonMultipleDevices = "multiple devices"
	ReasonMultipleIPs     = "multiple IP addresses"
)

// AuditSink persists audit trail entries.
type AuditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SecurityThresholds bound what a scan considers normal.
type SecurityThresholds struct {
	MaxSessions int
	MaxDevices  int
	MaxIPs      int
}

// DefaultSecurityThresholds returns the stock limits.
func DefaultSecurityThresholds() SecurityThresholds {
	return SecurityThresholds{MaxSessions: 5, MaxDevices: 3, MaxIPs: 3}
}

// RequestMeta describes the client issuing an administrative call.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// SuspiciousActivityService scans a user's sessions for anomalies and lets
// administrators end them.
type SuspiciousActivityService struct {
	store      SessionStore
	users      UserDirectory
	audit      AuditSink
	thresholds SecurityThresholds
	logger     *zap.Logger
}

// NewSuspiciousActivityService constructs the detector. Non-positive
// thresholds fall back to the defaults.
func NewSuspiciousActivityService(store SessionStore, users UserDirectory, audit AuditSink, thresholds SecurityThresholds, logger *zap.Logger) *SuspiciousActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultSecurityThresholds()
	if thresholds.MaxSessions <= 0 {
		thresholds.MaxSessions = defaults.MaxSessions
	}
	if thresholds.MaxDevices <= 0 {
		thresholds.MaxDevices = defaults.MaxDevices
	}
	if thresholds.MaxIPs <= 0 {
		thresholds.MaxIPs = defaults.MaxIPs
	}
	return &SuspiciousActivityService{store: store, users: users, audit: audit, thresholds: thresholds, logger: logger}
}

// Scan evaluates id's live sessions. The result is advisory; nothing is revoked.
func (s *SuspiciousActivityService) Scan(ctx context.Context, id models.Identity) (*models.SuspiciousActivityReport, error) {
	sessions, err := s.store.ListByUser(ctx, models.OwnerOf(id))
	if err != nil {
		return nil, storeUnavailable(err)
	}

	devices := make(map[string]struct{})
	ips := make(map[string]struct{})
	for _, session := range sessions {
		if session.DeviceFingerprint != "" {
			devices[session.DeviceFingerprint] = struct{}{}
		}
		if session.IPAddress != "" {
			ips[session.IPAddress] = struct{}{}
		}
	}

	report := &models.SuspiciousActivityReport{
		UserID:          id.Subject().UserID,
		Reasons:         []string{},
		SessionCount:    len(sessions),
		DistinctDevices: len(devices),
		DistinctIPs:     len(ips),
	}
	if report.SessionCount > s.thresholds.MaxSessions {
		report.Reasons = append(report.Reasons, ReasonTooManySessions)
	}
	if report.DistinctDevices > s.thresholds.MaxDevices {
		report.Reasons = append(report.Reasons, ReasonMultipleDevices)
	}
	if report.DistinctIPs > s.thresholds.MaxIPs {
		report.Reasons = append(report.Reasons, ReasonMultipleIPs)
	}
	report.IsSuspicious = len(report.Reasons) > 0

	if report.IsSuspicious {
		logger.WithRequest(ctx, s.logger).Info("suspicious session activity",
			zap.String("user_id", report.UserID),
			zap.Strings("reasons", report.Reasons),
			zap.Int("sessions", report.SessionCount),
		)
	}
	return report, nil
}

// ScanUser scans another account on behalf of an administrator.
func (s *SuspiciousActivityService) ScanUser(ctx context.Context, actor models.Identity, targetUserID string) (*models.SuspiciousActivityReport, error) {
	target, err := s.resolveTarget(ctx, actor, targetUserID)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, target)
}

// ListUserSessions returns another account's live sessions, newest first.
func (s *SuspiciousActivityService) ListUserSessions(ctx context.Context, actor models.Identity, targetUserID string) ([]models.SessionView, error) {
	target, err := s.resolveTarget(ctx, actor, targetUserID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.store.ListByUser(ctx, models.OwnerOf(target))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return sessionViews(sessions, ""), nil
}

// ForceLogout ends every session of targetUserID. A platform administrator
// may target anyone; an organization administrator only members of its own
// organization.
func (s *SuspiciousActivityService) ForceLogout(ctx context.Context, actor models.Identity, targetUserID, reason string, meta RequestMeta) (int, error) {
	target, err := s.resolveTarget(ctx, actor, targetUserID)
	if err != nil {
		return 0, err
	}

	removed, err := s.store.DeleteAllForUser(ctx, models.OwnerOf(target))
	if err != nil {
		return 0, storeUnavailable(err)
	}

	actorID := actor.Subject().UserID
	logger.WithRequest(ctx, s.logger).Warn("forced logout",
		zap.String("actor_id", actorID),
		zap.String("target_id", targetUserID),
		zap.String("reason", reason),
		zap.Int("logged_out_count", removed),
	)

	if s.audit != nil {
		values, _ := json.Marshal(map[string]interface{}{"reason": reason, "logged_out_count": removed})
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:         &actorID,
			OrganizationID: organizationPtr(target),
			Action:         models.AuditActionForceLogout,
			Resource:       "session",
			ResourceID:     &targetUserID,
			NewValues:      values,
			IPAddress:      meta.IP,
			UserAgent:      meta.UserAgent,
			RequestID:      requestid.FromContext(ctx),
		}); err != nil {
			s.logger.Warn("failed to record forced logout audit log", zap.Error(err))
		}
	}

	return removed, nil
}

// resolveTarget loads the target account and checks the actor may manage it.
// Accounts outside an organization administrator's scope look missing.
func (s *SuspiciousActivityService) resolveTarget(ctx context.Context, actor models.Identity, targetUserID string) (models.Identity, error) {
	actorRole := actor.Subject().Role
	if actorRole != models.RoleSuperAdmin && actorRole != models.RoleOrgAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
	}

	user, err := s.users.FindByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	target, err := user.Identity()
	if err != nil {
		return nil, appErrors.Wrap(fmt.Errorf("user %s: %w", user.ID, err), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "user record is inconsistent")
	}

	if _, platform := actor.(*models.PlatformIdentity); platform {
		return target, nil
	}
	actorOrg, _ := models.OrganizationOf(actor)
	targetOrg, tenant := models.OrganizationOf(target)
	if !tenant || targetOrg != actorOrg {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return target, nil
}

func organizationPtr(id models.Identity) *string {
	if org, ok := models.OrganizationOf(id); ok {
		return &org
	}
	return nil
}
