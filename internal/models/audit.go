package models

import "time"

// Audited session actions.
const (
	AuditActionForceLogout    = "FORCE_LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
)

// AuditLog is one row of the audit trail. OrganizationID is the tenant the
// affected account belongs to and is nil for platform accounts.
type AuditLog struct {
	ID             string    `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	OrganizationID *string   `db:"organization_id" json:"organization_id,omitempty"`
	Action         string    `db:"action" json:"action"`
	Resource       string    `db:"resource" json:"resource"`
	ResourceID     *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues      []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	UserAgent      string    `db:"user_agent" json:"user_agent"`
	RequestID      string    `db:"request_id" json:"request_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
