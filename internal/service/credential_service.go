package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/repository"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/password"
)

// UserDirectory is the relational user store consulted at login and refresh.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type passwordWriter interface {
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// CredentialService checks login credentials against the user directory.
type CredentialService struct {
	users     UserDirectory
	hasher    *password.Hasher
	dummyHash string
	logger    *zap.Logger
}

// NewCredentialService constructs a CredentialService. A throwaway hash is
// computed up front so that unknown usernames cost one full verification.
func NewCredentialService(users UserDirectory, hasher *password.Hasher, logger *zap.Logger) (*CredentialService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(base64.RawURLEncoding.EncodeToString(buf))
	if err != nil {
		return nil, err
	}
	return &CredentialService{users: users, hasher: hasher, dummyHash: dummy, logger: logger}, nil
}

// Verify returns the identity of the account named by identifier when plain
// is its password. Unknown, inactive and mismatched accounts all fail with
// ErrInvalidCredentials.
func (s *CredentialService) Verify(ctx context.Context, identifier, plain string) (models.Identity, error) {
	user, err := s.users.FindByUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.hasher.Verify(plain, s.dummyHash)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "user directory unavailable")
	}

	return s.check(ctx, user, plain)
}

// VerifyUser checks plain against an already loaded account.
func (s *CredentialService) VerifyUser(ctx context.Context, user *models.User, plain string) (models.Identity, error) {
	return s.check(ctx, user, plain)
}

func (s *CredentialService) check(ctx context.Context, user *models.User, plain string) (models.Identity, error) {
	ok, err := s.hasher.Verify(plain, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unusable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !ok || !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	id, err := user.Identity()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "user record has inconsistent role and organization")
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, plain)
	}
	return id, nil
}

// Hash returns a fresh hash for plain using the current parameters.
func (s *CredentialService) Hash(plain string) (string, error) {
	return s.hasher.Hash(plain)
}

func (s *CredentialService) upgradeHash(ctx context.Context, userID, plain string) {
	writer, ok := s.users.(passwordWriter)
	if !ok {
		return
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		s.logger.Warn("failed to rehash password", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := writer.UpdatePassword(ctx, userID, hash, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to store upgraded password hash", zap.String("user_id", userID), zap.Error(err))
	}
}
