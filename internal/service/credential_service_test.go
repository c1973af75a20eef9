package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/password"
)

func newCredentialServiceForTest(t *testing.T) (*CredentialService, *fakeUsers) {
	t.Helper()
	hasher := testHasher(t)
	users := seedUsers(t, hasher)
	svc, err := NewCredentialService(users, hasher, zap.NewNop())
	require.NoError(t, err)
	return svc, users
}

func TestCredentialVerifySuccess(t *testing.T) {
	svc, _ := newCredentialServiceForTest(t)

	id, err := svc.Verify(context.Background(), "alice", testPassword)
	require.NoError(t, err)
	tenant, ok := id.(*models.TenantIdentity)
	require.True(t, ok)
	assert.Equal(t, "u-alice", tenant.Sub.UserID)
	assert.Equal(t, "org-acme", tenant.OrganizationID)

	root, err := svc.Verify(context.Background(), "ROOT", testPassword)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformNamespace, root.Namespace())
}

func TestCredentialVerifyFailures(t *testing.T) {
	svc, users := newCredentialServiceForTest(t)
	users.update("u-dave", func(u *models.User) { u.PasswordHash = "plaintext" })

	tests := []struct {
		name       string
		identifier string
		password   string
	}{
		{"wrong password", "alice", "incorrect"},
		{"unknown user", "mallory", testPassword},
		{"inactive account", "carol", testPassword},
		{"unusable hash", "dave", testPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.Verify(context.Background(), tt.identifier, tt.password)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
			assert.Equal(t, appErrors.ErrInvalidCredentials.Message, appErrors.FromError(err).Message)
		})
	}
}

func TestCredentialVerifyDirectoryOutage(t *testing.T) {
	svc, users := newCredentialServiceForTest(t)
	users.err = errDirectoryDown

	_, err := svc.Verify(context.Background(), "alice", testPassword)
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errDirectoryDown)
}

func TestCredentialVerifyRejectsInconsistentRecord(t *testing.T) {
	svc, users := newCredentialServiceForTest(t)
	users.update("u-root", func(u *models.User) { u.OrganizationID = strPtr("org-acme") })

	_, err := svc.Verify(context.Background(), "root", testPassword)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestCredentialVerifyUpgradesWeakHash(t *testing.T) {
	users := seedUsers(t, testHasher(t))
	stronger, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)

	svc, err := NewCredentialService(users, stronger, zap.NewNop())
	require.NoError(t, err)

	before, _ := users.FindByID(context.Background(), "u-bob")
	_, err = svc.Verify(context.Background(), "bob", testPassword)
	require.NoError(t, err)

	after, _ := users.FindByID(context.Background(), "u-bob")
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)

	_, err = svc.Verify(context.Background(), "bob", testPassword)
	assert.NoError(t, err)
}
