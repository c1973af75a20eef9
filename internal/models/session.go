package models

import "time"

// Session is the store record owning one refresh token. SessionID equals the
// refresh token's tid claim.
type Session struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	Role              UserRole  `json:"role"`
	OrganizationID    string    `json:"organization_id,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	UserAgent         string    `json:"user_agent"`
	IPAddress         string    `json:"ip_address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// SessionOwner scopes store keys so ids never collide across tenants.
type SessionOwner struct {
	Namespace string
	UserID    string
}

// OwnerOf returns the store scope for id.
func OwnerOf(id Identity) SessionOwner {
	return SessionOwner{Namespace: id.Namespace(), UserID: id.Subject().UserID}
}

// DeviceType is a coarse user-agent classification used for display.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
	DeviceBot     DeviceType = "bot"
	DeviceUnknown DeviceType = "unknown"
)

// SessionView is one entry of a session listing.
type SessionView struct {
	SessionID         string     `json:"session_id"`
	DeviceType        DeviceType `json:"device_type"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	UserAgent         string     `json:"user_agent"`
	IPAddress         string     `json:"ip_address,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	Current           bool       `json:"current"`
}

// SessionStats aggregates a user's sessions for display only.
type SessionStats struct {
	Total        int                `json:"total"`
	ByDeviceType map[DeviceType]int `json:"by_device_type"`
	ByIPAddress  map[string]int     `json:"by_ip_address"`
}

// SuspiciousActivityReport is the advisory result of a session scan.
type SuspiciousActivityReport struct {
	UserID          string   `json:"user_id"`
	IsSuspicious    bool     `json:"is_suspicious"`
	Reasons         []string `json:"reasons"`
	SessionCount    int      `json:"session_count"`
	DistinctDevices int      `json:"distinct_devices"`
	DistinctIPs     int      `json:"distinct_ips"`
}
