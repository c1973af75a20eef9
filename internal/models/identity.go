package models

import (
	"context"
	"errors"
)

// UserRole is the closed set of account roles.
type UserRole string

const (
	// RoleSuperAdmin operates the platform and belongs to no organization.
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
	RoleOrgAdmin   UserRole = "ORG_ADMIN"
	RoleManager    UserRole = "MANAGER"
	RoleUser       UserRole = "USER"
)

// PlatformNamespace is the session namespace of identities without an organization.
const PlatformNamespace = "platform"

// ErrIdentityShape is returned when role and organization disagree: tenant
// roles need an organization id and the platform role must not carry one.
var ErrIdentityShape = errors.New("identity role and organization do not agree")

// IsTenantRole reports whether r is scoped to an organization.
func (r UserRole) IsTenantRole() bool {
	switch r {
	case RoleOrgAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleSuperAdmin || r.IsTenantRole()
}

// Subject carries the claims every identity shares.
type Subject struct {
	UserID   string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
}

// Identity is either a *TenantIdentity or a *PlatformIdentity.
type Identity interface {
	Subject() Subject
	// Namespace scopes session keys: the organization id, or PlatformNamespace.
	Namespace() string
	isIdentity()
}

// TenantIdentity is an organization member.
type TenantIdentity struct {
	Sub            Subject
	OrganizationID string
}

// PlatformIdentity is an operator outside every organization.
type PlatformIdentity struct {
	Sub Subject
}

func (t *TenantIdentity) Subject() Subject   { return t.Sub }
func (t *TenantIdentity) Namespace() string  { return t.OrganizationID }
func (*TenantIdentity) isIdentity()          {}
func (p *PlatformIdentity) Subject() Subject { return p.Sub }
func (*PlatformIdentity) Namespace() string  { return PlatformNamespace }
func (*PlatformIdentity) isIdentity()        {}

// NewIdentity builds the variant matching sub.Role, enforcing that the
// organization id is present exactly when the role is a tenant role.
func NewIdentity(sub Subject, organizationID string) (Identity, error) {
	if sub.UserID == "" || !sub.Role.Valid() {
		return nil, ErrIdentityShape
	}
	if sub.Role.IsTenantRole() {
		if organizationID == "" {
			return nil, ErrIdentityShape
		}
		return &TenantIdentity{Sub: sub, OrganizationID: organizationID}, nil
	}
	if organizationID != "" {
		return nil, ErrIdentityShape
	}
	return &PlatformIdentity{Sub: sub}, nil
}

// OrganizationOf returns the organization id of id, if it has one.
func OrganizationOf(id Identity) (string, bool) {
	if t, ok := id.(*TenantIdentity); ok {
		return t.OrganizationID, true
	}
	return "", false
}

// SameIdentity reports whether a and b describe the same account binding.
func SameIdentity(a, b Identity) bool {
	if a == nil || b == nil {
		return false
	}
	sa, sb := a.Subject(), b.Subject()
	return sa.UserID == sb.UserID && sa.Role == sb.Role && a.Namespace() == b.Namespace()
}

// Principal is the authenticated caller of one request.
type Principal struct {
	Identity  Identity
	SessionID string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
