package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/repository"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
)

// SessionStore persists one record per live refresh token.
type SessionStore interface {
	Put(ctx context.Context, owner models.SessionOwner, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, owner models.SessionOwner, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, owner models.SessionOwner, sessionID string) (bool, error)
	ListByUser(ctx context.Context, owner models.SessionOwner) ([]*models.Session, error)
	CountForUser(ctx context.Context, owner models.SessionOwner) (int, error)
	DeleteAllForUser(ctx context.Context, owner models.SessionOwner) (int, error)
	Rotate(ctx context.Context, owner models.SessionOwner, oldSessionID string, next *models.Session, ttl time.Duration) (bool, error)
}

// AuthObserver receives the outcome of every authority operation.
type AuthObserver interface {
	RecordAuthOutcome(operation, outcome string)
}

type lastLoginWriter interface {
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// SessionAuthorityConfig selects session policies.
type SessionAuthorityConfig struct {
	// RotateRefresh replaces the session id and refresh token on every refresh.
	RotateRefresh bool
	// StrictAccessCheck requires the access token's session to still exist.
	StrictAccessCheck bool
}

// SessionAuthority orchestrates login, refresh, logout and session enumeration.
type SessionAuthority struct {
	credentials *CredentialService
	tokens      *TokenService
	store       SessionStore
	users       UserDirectory
	guard       *TenantGuard
	validator   *validator.Validate
	logger      *zap.Logger
	observer    AuthObserver
	config      SessionAuthorityConfig
	coalescer   refreshCoalescer
	now         func() time.Time
}

// SessionAuthorityDeps bundles the collaborators of a SessionAuthority.
type SessionAuthorityDeps struct {
	Credentials *CredentialService
	Tokens      *TokenService
	Store       SessionStore
	Users       UserDirectory
	Guard       *TenantGuard
	Validator   *validator.Validate
	Logger      *zap.Logger
	Observer    AuthObserver
}

// NewSessionAuthority constructs a SessionAuthority.
func NewSessionAuthority(deps SessionAuthorityDeps, config SessionAuthorityConfig) *SessionAuthority {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &SessionAuthority{
		credentials: deps.Credentials,
		tokens:      deps.Tokens,
		store:       deps.Store,
		users:       deps.Users,
		guard:       deps.Guard,
		validator:   deps.Validator,
		logger:      deps.Logger,
		observer:    deps.Observer,
		config:      config,
		now:         deps.Tokens.now,
	}
}

func (a *SessionAuthority) record(operation string, err error) {
	if a.observer == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(appErrors.Code(err))
	}
	a.observer.RecordAuthOutcome(operation, outcome)
}

func revoked(err error) error {
	if err == nil {
		return appErrors.Clone(appErrors.ErrSessionRevoked, "")
	}
	return appErrors.Wrap(err, appErrors.ErrSessionRevoked.Code, appErrors.ErrSessionRevoked.Status, appErrors.ErrSessionRevoked.Message)
}

func storeUnavailable(err error) error {
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
}

// Login verifies credentials, binds the identity to the requested tenant and
// opens a new session. No tokens are returned unless the session was stored.
func (a *SessionAuthority) Login(ctx context.Context, req models.LoginRequest) (resp *models.LoginResponse, err error) {
	defer func() { a.record("login", err) }()

	if err := a.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	id, err := a.credentials.Verify(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	if err := a.guard.Check(ctx, id, req.Tenant); err != nil {
		return nil, err
	}

	refreshToken, sessionID, _, err := a.tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	accessToken, _, err := a.tokens.IssueAccessToken(id, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	issuedAt := a.now().UTC()
	session := newSessionRecord(id, sessionID, req.DeviceFingerprint, req.UserAgent, req.IP, issuedAt)
	if err := a.store.Put(ctx, models.OwnerOf(id), session, a.tokens.RefreshTTL()); err != nil {
		return nil, storeUnavailable(err)
	}

	if writer, ok := a.users.(lastLoginWriter); ok {
		if err := writer.UpdateLastLogin(ctx, id.Subject().UserID, issuedAt); err != nil {
			a.logger.Warn("failed to update last login", zap.Error(err))
		}
	}

	logger.WithRequest(ctx, a.logger).Info("session opened",
		zap.String("user_id", id.Subject().UserID),
		zap.String("namespace", id.Namespace()),
		zap.String("session_id", sessionID),
	)

	return &models.LoginResponse{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(a.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(a.tokens.RefreshTTL().Seconds()),
		SessionID:        sessionID,
		User:             models.NewUserInfo(id),
		IssuedAt:         issuedAt,
	}, nil
}

// Refresh exchanges a refresh token for a new access token, rotating the
// session when configured. Concurrent calls with the same token share one
// result.
func (a *SessionAuthority) Refresh(ctx context.Context, req models.RefreshTokenRequest) (resp *models.RefreshTokenResponse, err error) {
	defer func() { a.record("refresh", err) }()

	if err := a.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	verified, err := a.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, appErrors.ErrTokenExpired) && verified != nil {
			// An expired refresh token ends its session.
			if _, delErr := a.store.Delete(ctx, models.OwnerOf(verified.Identity), verified.SessionID); delErr != nil {
				a.logger.Debug("failed to delete expired session", zap.Error(delErr))
			}
			return nil, revoked(err)
		}
		return nil, err
	}

	// The leader's context may be cancelled while followers still wait.
	shared := context.WithoutCancel(ctx)
	resp, _, err = a.coalescer.do(req.RefreshToken, func() (*models.RefreshTokenResponse, error) {
		return a.refresh(shared, verified, req)
	})
	return resp, err
}

func (a *SessionAuthority) refresh(ctx context.Context, verified *VerifiedToken, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	owner := models.OwnerOf(verified.Identity)

	current, err := a.store.Get(ctx, owner, verified.SessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			a.logger.Warn("session lookup failed during refresh", zap.Error(err))
		}
		return nil, revoked(err)
	}
	if current.Role != verified.Identity.Subject().Role {
		return nil, revoked(nil)
	}

	if gone, err := a.recheckUser(ctx, verified.Identity); err != nil {
		if gone {
			if _, delErr := a.store.Delete(ctx, owner, verified.SessionID); delErr != nil {
				a.logger.Warn("failed to delete session of changed account", zap.Error(delErr))
			}
		}
		return nil, err
	}

	issuedAt := a.now().UTC()

	if !a.config.RotateRefresh {
		accessToken, _, err := a.tokens.IssueAccessToken(verified.Identity, verified.SessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
		}
		return &models.RefreshTokenResponse{
			AccessToken:      accessToken,
			RefreshToken:     req.RefreshToken,
			ExpiresIn:        int64(a.tokens.AccessTTL().Seconds()),
			RefreshExpiresIn: int64(verified.ExpiresAt.Sub(issuedAt).Seconds()),
			SessionID:        verified.SessionID,
			IssuedAt:         issuedAt,
		}, nil
	}

	refreshToken, sessionID, _, err := a.tokens.IssueRefreshToken(verified.Identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	accessToken, _, err := a.tokens.IssueAccessToken(verified.Identity, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	next := newSessionRecord(verified.Identity, sessionID,
		firstNonEmpty(req.DeviceFingerprint, current.DeviceFingerprint),
		firstNonEmpty(req.UserAgent, current.UserAgent),
		firstNonEmpty(req.IP, current.IPAddress),
		issuedAt,
	)
	won, err := a.store.Rotate(ctx, owner, verified.SessionID, next, a.tokens.RefreshTTL())
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if !won {
		return nil, revoked(nil)
	}

	return &models.RefreshTokenResponse{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		ExpiresIn:        int64(a.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(a.tokens.RefreshTTL().Seconds()),
		SessionID:        sessionID,
		Rotated:          true,
		IssuedAt:         issuedAt,
	}, nil
}

// recheckUser rejects refreshes for accounts that vanished, were disabled or
// moved. gone reports whether the session should be deleted; a directory
// outage only rejects the current attempt.
func (a *SessionAuthority) recheckUser(ctx context.Context, id models.Identity) (gone bool, err error) {
	user, err := a.users.FindByID(ctx, id.Subject().UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return true, revoked(err)
		}
		a.logger.Warn("user directory lookup failed during refresh", zap.Error(err))
		return false, revoked(storeUnavailable(err))
	}
	if !user.Active {
		return true, revoked(nil)
	}
	current, err := user.Identity()
	if err != nil || !models.SameIdentity(current, id) {
		return true, revoked(err)
	}
	return false, nil
}

// Authenticate verifies an access token and returns the caller. In strict
// mode the session named by the token must still be live.
func (a *SessionAuthority) Authenticate(ctx context.Context, accessToken string) (*models.Principal, error) {
	verified, err := a.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	principal := &models.Principal{Identity: verified.Identity, SessionID: verified.SessionID}
	if !a.config.StrictAccessCheck {
		return principal, nil
	}
	if _, err := a.store.Get(ctx, models.OwnerOf(verified.Identity), verified.SessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, revoked(nil)
		}
		return nil, storeUnavailable(err)
	}
	return principal, nil
}

// Logout ends one of the caller's sessions. An empty target means the
// caller's current session. Sessions of other users are never touched.
func (a *SessionAuthority) Logout(ctx context.Context, principal *models.Principal, target string) (count int, err error) {
	defer func() { a.record("logout", err) }()

	if target == "" {
		target = principal.SessionID
	}
	if _, err := uuid.Parse(target); err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid session id")
	}

	deleted, err := a.store.Delete(ctx, models.OwnerOf(principal.Identity), target)
	if err != nil {
		return 0, storeUnavailable(err)
	}
	if deleted {
		return 1, nil
	}
	return 0, nil
}

// LogoutOthers ends every session of the caller except the current one.
func (a *SessionAuthority) LogoutOthers(ctx context.Context, principal *models.Principal) (count int, err error) {
	defer func() { a.record("logout_others", err) }()
	return a.revokeAllExcept(ctx, principal.Identity, principal.SessionID)
}

// LogoutAll ends every session of the caller.
func (a *SessionAuthority) LogoutAll(ctx context.Context, principal *models.Principal) (count int, err error) {
	defer func() { a.record("logout_all", err) }()
	return a.RevokeAll(ctx, principal.Identity)
}

// RevokeAll ends every session of id and returns how many were removed.
func (a *SessionAuthority) RevokeAll(ctx context.Context, id models.Identity) (int, error) {
	removed, err := a.store.DeleteAllForUser(ctx, models.OwnerOf(id))
	if err != nil {
		return 0, storeUnavailable(err)
	}
	return removed, nil
}

func (a *SessionAuthority) revokeAllExcept(ctx context.Context, id models.Identity, keep string) (int, error) {
	owner := models.OwnerOf(id)
	sessions, err := a.store.ListByUser(ctx, owner)
	if err != nil {
		return 0, storeUnavailable(err)
	}
	count := 0
	for _, session := range sessions {
		if session.SessionID == keep {
			continue
		}
		deleted, err := a.store.Delete(ctx, owner, session.SessionID)
		if err != nil {
			return count, storeUnavailable(err)
		}
		if deleted {
			count++
		}
	}
	return count, nil
}

// ListSessions returns the caller's live sessions, newest first.
func (a *SessionAuthority) ListSessions(ctx context.Context, principal *models.Principal) ([]models.SessionView, error) {
	sessions, err := a.store.ListByUser(ctx, models.OwnerOf(principal.Identity))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	return sessionViews(sessions, principal.SessionID), nil
}

func sessionViews(sessions []*models.Session, currentID string) []models.SessionView {
	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, models.SessionView{
			SessionID:         session.SessionID,
			DeviceType:        ClassifyDevice(session.UserAgent),
			DeviceFingerprint: session.DeviceFingerprint,
			UserAgent:         session.UserAgent,
			IPAddress:         session.IPAddress,
			CreatedAt:         session.CreatedAt,
			Current:           currentID != "" && session.SessionID == currentID,
		})
	}
	return views
}

// Stats aggregates the caller's sessions by device type and source address.
func (a *SessionAuthority) Stats(ctx context.Context, principal *models.Principal) (*models.SessionStats, error) {
	sessions, err := a.store.ListByUser(ctx, models.OwnerOf(principal.Identity))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	stats := &models.SessionStats{
		Total:        len(sessions),
		ByDeviceType: make(map[models.DeviceType]int),
		ByIPAddress:  make(map[string]int),
	}
	for _, session := range sessions {
		stats.ByDeviceType[ClassifyDevice(session.UserAgent)]++
		ip := session.IPAddress
		if ip == "" {
			ip = "unknown"
		}
		stats.ByIPAddress[ip]++
	}
	return stats, nil
}

func newSessionRecord(id models.Identity, sessionID, fingerprint, userAgent, ip string, createdAt time.Time) *models.Session {
	org, _ := models.OrganizationOf(id)
	return &models.Session{
		SessionID:         sessionID,
		UserID:            id.Subject().UserID,
		Role:              id.Subject().Role,
		OrganizationID:    org,
		DeviceFingerprint: fingerprint,
		UserAgent:         userAgent,
		IPAddress:         ip,
		CreatedAt:         createdAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
