package models

import "time"

// User is the directory record consulted at login and refresh.
type User struct {
	ID             string     `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Role           UserRole   `db:"role" json:"role"`
	OrganizationID *string    `db:"organization_id" json:"organization_id,omitempty"`
	Active         bool       `db:"active" json:"active"`
	LastLogin      *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Identity converts the record into its role variant.
func (u *User) Identity() (Identity, error) {
	org := ""
	if u.OrganizationID != nil {
		org = *u.OrganizationID
	}
	return NewIdentity(Subject{UserID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}, org)
}

// Organization is a tenant. Slug is what subdomains and tenant headers carry.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	Role           UserRole `json:"role"`
	OrganizationID string   `json:"organization_id,omitempty"`
}

// NewUserInfo flattens an identity for responses.
func NewUserInfo(id Identity) UserInfo {
	sub := id.Subject()
	org, _ := OrganizationOf(id)
	return UserInfo{ID: sub.UserID, Username: sub.Username, Email: sub.Email, Role: sub.Role, OrganizationID: org}
}
