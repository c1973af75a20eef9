package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityVariants(t *testing.T) {
	tenant, err := NewIdentity(Subject{UserID: "u1", Role: RoleManager}, "org-1")
	require.NoError(t, err)
	ti, ok := tenant.(*TenantIdentity)
	require.True(t, ok)
	assert.Equal(t, "org-1", ti.OrganizationID)
	assert.Equal(t, "org-1", tenant.Namespace())

	platform, err := NewIdentity(Subject{UserID: "root", Role: RoleSuperAdmin}, "")
	require.NoError(t, err)
	_, ok = platform.(*PlatformIdentity)
	require.True(t, ok)
	assert.Equal(t, PlatformNamespace, platform.Namespace())
	_, hasOrg := OrganizationOf(platform)
	assert.False(t, hasOrg)
}

func TestNewIdentityRejectsMismatchedShape(t *testing.T) {
	cases := []struct {
		name string
		sub  Subject
		org  string
	}{
		{"tenant role without org", Subject{UserID: "u1", Role: RoleUser}, ""},
		{"platform role with org", Subject{UserID: "u1", Role: RoleSuperAdmin}, "org-1"},
		{"unknown role", Subject{UserID: "u1", Role: "JANITOR"}, ""},
		{"missing user id", Subject{Role: RoleSuperAdmin}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewIdentity(tc.sub, tc.org)
			assert.ErrorIs(t, err, ErrIdentityShape)
		})
	}
}

func TestUserIdentity(t *testing.T) {
	org := "acme-id"
	u := &User{ID: "u1", Username: "alice", Email: "alice@acme.test", Role: RoleOrgAdmin, OrganizationID: &org}
	id, err := u.Identity()
	require.NoError(t, err)
	assert.Equal(t, SessionOwner{Namespace: "acme-id", UserID: "u1"}, OwnerOf(id))
	info := NewUserInfo(id)
	assert.Equal(t, "acme-id", info.OrganizationID)
	assert.Equal(t, "alice", info.Username)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	id, err := NewIdentity(Subject{UserID: "root", Role: RoleSuperAdmin}, "")
	require.NoError(t, err)
	ctx := WithPrincipal(context.Background(), &Principal{Identity: id, SessionID: "s1"})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "s1", p.SessionID)
}

func TestSameIdentity(t *testing.T) {
	a, _ := NewIdentity(Subject{UserID: "u1", Role: RoleUser}, "org-1")
	b, _ := NewIdentity(Subject{UserID: "u1", Role: RoleUser, Email: "changed@x"}, "org-1")
	c, _ := NewIdentity(Subject{UserID: "u1", Role: RoleUser}, "org-2")
	assert.True(t, SameIdentity(a, b))
	assert.False(t, SameIdentity(a, c))
	assert.False(t, SameIdentity(a, nil))
}
