package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username          string `json:"username" validate:"required,max=255"`
	Password          string `json:"password" validate:"required,max=1024"`
	Tenant            string `json:"tenant,omitempty" validate:"omitempty,max=255"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty" validate:"omitempty,max=512"`
	IP                string `json:"-"`
	UserAgent         string `json:"-"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	AccessToken      string    `json:"access_token,omitempty"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshExpiresIn int64     `json:"refresh_expires_in"`
	SessionID        string    `json:"session_id"`
	User             UserInfo  `json:"user"`
	IssuedAt         time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken      string `json:"refresh_token" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty" validate:"omitempty,max=512"`
	IP                string `json:"-"`
	UserAgent         string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens. RefreshToken is the
// presented token again when rotation is disabled.
type RefreshTokenResponse struct {
	AccessToken      string    `json:"access_token,omitempty"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshExpiresIn int64     `json:"refresh_expires_in"`
	SessionID        string    `json:"session_id"`
	Rotated          bool      `json:"rotated"`
	IssuedAt         time.Time `json:"issued_at"`
}

// LogoutRequest names the session to end; empty means the caller's own.
type LogoutRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=64"`
}

// LogoutResponse reports how many sessions were terminated.
type LogoutResponse struct {
	LoggedOutCount int `json:"logged_out_count"`
}

// ForceLogoutRequest is the admin payload for ending a user's sessions.
type ForceLogoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=10,max=1024"`
}

// VerifyResponse is the result of the lightweight token liveness check.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// TokenClaims is the JWT payload shared by access and refresh tokens.
// OrganizationID is empty for the platform role.
type TokenClaims struct {
	UserID         string   `json:"uid"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	Role           UserRole `json:"role"`
	OrganizationID string   `json:"org_id,omitempty"`
	SessionID      string   `json:"sid,omitempty"`
	TokenID        string   `json:"tid,omitempty"`
	Type           string   `json:"typ"`
	jwt.RegisteredClaims
}

// Identity rebuilds the role variant from the claim set.
func (c *TokenClaims) Identity() (Identity, error) {
	return NewIdentity(Subject{UserID: c.UserID, Username: c.Username, Email: c.Email, Role: c.Role}, c.OrganizationID)
}
