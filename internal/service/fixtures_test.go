package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/repository"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/password"
)

const testPassword = "correct horse battery"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	err       error
	lastLogin map[string]time.Time
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if strings.EqualFold(u.Username, username) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastLogin == nil {
		f.lastLogin = make(map[string]time.Time)
	}
	f.lastLogin[id] = ts
	return nil
}

func (f *fakeUsers) update(id string, fn func(*models.User)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.byID[id])
}

type fakeResolver struct {
	slugs map[string]string
	err   error
}

func (f *fakeResolver) ResolveTenant(_ context.Context, indicator string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	id, ok := f.slugs[strings.ToLower(indicator)]
	return id, ok, nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (f *fakeAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return f.err
}

type recordedOutcome struct{ operation, outcome string }

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (f *fakeObserver) RecordAuthOutcome(operation, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, recordedOutcome{operation, outcome})
}

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	hasher, err := password.NewHasher(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)
	return hasher
}

func strPtr(s string) *string { return &s }

func seedUsers(t *testing.T, hasher *password.Hasher) *fakeUsers {
	t.Helper()
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	mk := func(id, username string, role models.UserRole, org *string, active bool) *models.User {
		return &models.User{ID: id, Username: username, Email: username + "@example.test", PasswordHash: hash, Role: role, OrganizationID: org, Active: active}
	}
	return &fakeUsers{byID: map[string]*models.User{
		"u-alice": mk("u-alice", "alice", models.RoleOrgAdmin, strPtr("org-acme"), true),
		"u-bob":   mk("u-bob", "bob", models.RoleUser, strPtr("org-acme"), true),
		"u-dave":  mk("u-dave", "dave", models.RoleUser, strPtr("org-other"), true),
		"u-carol": mk("u-carol", "carol", models.RoleManager, strPtr("org-acme"), false),
		"u-root":  mk("u-root", "root", models.RoleSuperAdmin, nil, true),
	}}
}

type testEnv struct {
	authority *SessionAuthority
	tokens    *TokenService
	store     *repository.SessionRepository
	mr        *miniredis.Miniredis
	users     *fakeUsers
	guard     *TenantGuard
	creds     *CredentialService
	clock     *fakeClock
	observer  *fakeObserver
}

type envOption func(*SessionAuthorityConfig, *TokenConfig)

func withRefreshTTL(ttl time.Duration) envOption {
	return func(_ *SessionAuthorityConfig, tc *TokenConfig) { tc.RefreshTTL = ttl }
}

func withoutRotation() envOption {
	return func(ac *SessionAuthorityConfig, _ *TokenConfig) { ac.RotateRefresh = false }
}

func withStrictAccess() envOption {
	return func(ac *SessionAuthorityConfig, _ *TokenConfig) { ac.StrictAccessCheck = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	authCfg := SessionAuthorityConfig{RotateRefresh: true}
	tokenCfg := TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "lms-test",
		Audience:      []string{"lms-web"},
	}
	for _, opt := range opts {
		opt(&authCfg, &tokenCfg)
	}

	clock := newFakeClock()
	tokens, err := NewTokenService(tokenCfg, WithClock(clock.Now))
	require.NoError(t, err)

	hasher := testHasher(t)
	users := seedUsers(t, hasher)
	creds, err := NewCredentialService(users, hasher, zap.NewNop())
	require.NoError(t, err)

	store := repository.NewSessionRepository(client, repository.SessionStoreOptions{KeyPrefix: "test", DeleteRetries: 1}, zap.NewNop())
	guard := NewTenantGuard(&fakeResolver{slugs: map[string]string{"acme": "org-acme", "other-org": "org-other"}}, zap.NewNop())
	observer := &fakeObserver{}

	authority := NewSessionAuthority(SessionAuthorityDeps{
		Credentials: creds,
		Tokens:      tokens,
		Store:       store,
		Users:       users,
		Guard:       guard,
		Validator:   validator.New(),
		Observer:    observer,
	}, authCfg)

	return &testEnv{authority: authority, tokens: tokens, store: store, mr: mr, users: users, guard: guard, creds: creds, clock: clock, observer: observer}
}

func (e *testEnv) login(t *testing.T, username, tenant, userAgent string) *models.LoginResponse {
	t.Helper()
	resp, err := e.authority.Login(context.Background(), models.LoginRequest{
		Username:  username,
		Password:  testPassword,
		Tenant:    tenant,
		UserAgent: userAgent,
		IP:        "10.0.0.1",
	})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) principal(t *testing.T, accessToken string) *models.Principal {
	t.Helper()
	p, err := e.authority.Authenticate(context.Background(), accessToken)
	require.NoError(t, err)
	return p
}

var errDirectoryDown = errors.New("directory down")
