package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionStaffCreate    = "STAFF_CREATE"
	AuditActionStaffDisable   = "STAFF_DISABLE"
	AuditActionSeatAssign     = "SEAT_ASSIGN"
	AuditActionSeatClear      = "SEAT_CLEAR"
	AuditActionSeatReconcile  = "SEAT_RECONCILE"
	AuditActionCheckIn        = "CHECK_IN"
	AuditActionCheckOut       = "CHECK_OUT"
	AuditActionPaymentRecord  = "PAYMENT_RECORD"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter captures list parameters for the audit trail.
type AuditFilter struct {
	Action   string
	UserID   string
	Page     int
	PageSize int
}
